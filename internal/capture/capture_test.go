package capture_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/device"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/telemetry"
)

// flakyLink fails after a number of frames. Before frame stallAt it times
// out stalls times.
type flakyLink struct {
	frames  int
	failAt  int
	err     error
	stallAt int
	stalls  int
}

func (f *flakyLink) EnableReports(telemetry.Side) error  { return nil }
func (f *flakyLink) DisableReports(telemetry.Side) error { return nil }
func (f *flakyLink) SetPower(telemetry.Side, int) error  { return nil }
func (f *flakyLink) ReadFrame(ctx context.Context) (telemetry.Frame, error) {
	if f.frames == f.failAt {
		return telemetry.Frame{}, f.err
	}
	if f.frames == f.stallAt && f.stalls > 0 {
		f.stalls--
		return telemetry.Frame{}, link.ErrTimeout
	}
	f.frames++
	return telemetry.Frame{Ints: map[string]int64{
		telemetry.KeyTime:      int64(f.frames),
		telemetry.KeyLeftMotor: int64(f.frames * 2),
	}}, nil
}

var _ = Describe("Step", func() {
	var (
		sess *link.Session
		ctx  context.Context
	)

	BeforeEach(func() {
		params := device.DefaultMotorParams()
		sess = link.NewSession(device.New(params, params, 0), nil)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(sess.Close()).To(Succeed())
	})

	It("records every phase of the sequence", func() {
		plan := capture.StepPlan{Side: telemetry.Left, Power: 10000, Before: 100, Step: 500, After: 300}

		var observed int
		res, err := capture.Step(ctx, sess, plan, capture.ObserverFunc(func(telemetry.Sample) { observed++ }))
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Origin).To(Equal(int64(1)))
		Expect(res.Samples).To(HaveLen(903))
		Expect(observed).To(Equal(903))

		counts := map[int]int{}
		for _, s := range res.Samples {
			counts[s.Step]++
		}
		Expect(counts[capture.PhaseBefore]).To(Equal(101))
		Expect(counts[capture.PhaseStep]).To(Equal(501))
		Expect(counts[capture.PhaseAfter]).To(Equal(301))

		first := res.Samples[0]
		Expect(first.Time).To(Equal(1.0))
		Expect(first.HasPower).To(BeFalse())
	})

	It("drives the motor only during the step phase", func() {
		plan := capture.StepPlan{Side: telemetry.Left, Power: 10000, Before: 50, Step: 400, After: 400}
		res, err := capture.Step(ctx, sess, plan, nil)
		Expect(err).NotTo(HaveOccurred())

		var before, during []float64
		for _, s := range res.Samples {
			switch s.Step {
			case capture.PhaseBefore:
				before = append(before, s.Position)
			case capture.PhaseStep:
				during = append(during, s.Position)
				Expect(s.Power).To(Equal(10000.0))
			}
		}
		Expect(before[len(before)-1]).To(Equal(0.0))
		Expect(during[len(during)-1]).To(BeNumerically(">", 2500))
	})

	It("rejects plans with empty phases", func() {
		_, err := capture.Step(ctx, sess, capture.StepPlan{Side: telemetry.Left, Power: 1, Before: 0, Step: 1, After: 1}, nil)
		Expect(errors.Is(err, capture.ErrInvalidPlan)).To(BeTrue())
	})

	It("keeps partial samples when the link fails", func() {
		boom := errors.New("unplugged")
		fl := &flakyLink{failAt: 20, err: boom}

		_, err := capture.Step(ctx, fl, capture.DefaultStepPlan(), nil)
		Expect(errors.Is(err, boom)).To(BeTrue())

		var cerr *capture.Error
		Expect(errors.As(err, &cerr)).To(BeTrue())
		Expect(cerr.Partial.Samples).To(HaveLen(19))
	})

	It("rides out a few read timeouts", func() {
		fl := &flakyLink{failAt: -1, stallAt: 30, stalls: capture.MaxTimeouts}
		plan := capture.StepPlan{Side: telemetry.Left, Power: 1000, Before: 20, Step: 20, After: 20}

		res, err := capture.Step(ctx, fl, plan, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Samples).NotTo(BeEmpty())
		Expect(fl.stalls).To(BeZero())
	})

	It("fails after too many consecutive timeouts", func() {
		fl := &flakyLink{failAt: -1, stallAt: 30, stalls: capture.MaxTimeouts + 1}

		_, err := capture.Step(ctx, fl, capture.DefaultStepPlan(), nil)
		Expect(errors.Is(err, link.ErrTimeout)).To(BeTrue())

		var cerr *capture.Error
		Expect(errors.As(err, &cerr)).To(BeTrue())
		Expect(cerr.Partial.Samples).To(HaveLen(29))
	})
})

var _ = Describe("Frequency", func() {
	It("updates the drive every period and stops at the run time", func() {
		params := device.DefaultMotorParams()
		sess := link.NewSession(device.New(params, params, 0), nil)
		defer sess.Close()

		plan := capture.FrequencyPlan{Side: telemetry.Right, RunTime: 1000, Frequency: 0.002, Gain: 10000, UpdateEvery: 10}
		res, err := capture.Frequency(context.Background(), sess, plan, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Samples).To(HaveLen(1000))
		Expect(res.Samples[len(res.Samples)-1].Time).To(Equal(1000.0))

		// rel 10 triggers the first update, seen from rel 11 on
		Expect(res.Samples[9].HasPower).To(BeFalse())
		Expect(res.Samples[10].HasPower).To(BeTrue())
		Expect(res.Samples[10].Power).To(BeNumerically("~", plan.Drive(10), 1e-9))
	})

	It("computes the sinusoidal drive", func() {
		plan := capture.DefaultFrequencyPlan()
		Expect(plan.Drive(0)).To(BeNumerically("~", 5000, 1e-9))
		Expect(plan.Drive(125)).To(BeNumerically("~", 10000, 1e-6))
		Expect(plan.Drive(375)).To(BeNumerically("~", 0, 1e-6))
	})

	It("sweeps several frequencies", func() {
		params := device.DefaultMotorParams()
		sess := link.NewSession(device.New(params, params, 0), nil)
		defer sess.Close()

		base := capture.DefaultFrequencyPlan()
		base.RunTime = 200
		res, err := capture.Sweep(context.Background(), sess, base, []float64{0.005, 0.01}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(HaveLen(2))
		Expect(res[1].Plan.Frequency).To(Equal(0.01))
		Expect(res[1].Result.Samples).To(HaveLen(200))
	})
})
