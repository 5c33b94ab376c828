package tune_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/motorlab/internal/tf"
	"github.com/san-kum/motorlab/internal/tune"
)

var motor = tf.Motor(44.8, 0.000825)

var _ = Describe("Evaluate", func() {
	ctx := context.Background()

	It("scores a stable PI loop", func() {
		ev, err := tune.Evaluate(ctx, motor, tune.Gains{P: 1000, I: 20}, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Stable).To(BeTrue())
		Expect(ev.Metrics.SteadyStateError).To(BeNumerically("<", 0.01))
		Expect(math.IsInf(ev.Metrics.RiseTime, 0)).To(BeFalse())
		Expect(ev.Cost).To(BeNumerically(">", 0))
		Expect(ev.Response.Times).To(HaveLen(len(ev.Power)))
		Expect(ev.PeakPower).To(BeNumerically(">=", 1000))
	})

	It("reports positive feedback as unstable", func() {
		ev, err := tune.Evaluate(ctx, motor, tune.Gains{P: -2000}, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Stable).To(BeFalse())
		Expect(math.IsInf(ev.Cost, 1)).To(BeTrue())
	})

	It("gives zero gains an infinite cost", func() {
		ev, err := tune.Evaluate(ctx, motor, tune.Gains{}, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsInf(ev.Cost, 1)).To(BeTrue())
	})

	It("leaves a steady state error without integral action", func() {
		ev, err := tune.Evaluate(ctx, motor, tune.Gains{P: 1000}, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		// DC gain of the loop is Kp*K/(1+Kp*K)
		Expect(ev.Metrics.SteadyStateError).To(BeNumerically("~", 1/1.825, 1e-3))
	})

	It("agrees across integrators", func() {
		g := tune.Gains{P: 1000, I: 20}
		rk, err := tune.Evaluate(ctx, motor, g, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		opts := tune.DefaultOptions()
		opts.Integrator = "euler"
		eu, err := tune.Evaluate(ctx, motor, g, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(eu.Metrics.RiseTime).To(BeNumerically("~", rk.Metrics.RiseTime, 2))
		Expect(eu.Metrics.SteadyStateError).To(BeNumerically("<", 0.01))
	})

	It("rejects an unknown integrator", func() {
		opts := tune.DefaultOptions()
		opts.Integrator = "leapfrog"
		_, err := tune.Evaluate(ctx, motor, tune.Gains{P: 1000, I: 20}, opts)
		Expect(err).To(MatchError(ContainSubstring("unknown integrator")))
	})
})

var _ = Describe("Search", func() {
	It("prefers integral action and sorts by cost", func() {
		grid := tune.Grid{
			P: []float64{200, 1000, 4000},
			I: []float64{0, 10, 40},
			D: []float64{0},
		}
		best, all, err := tune.Search(context.Background(), motor, grid, tune.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(9))
		Expect(best.Gains.I).To(BeNumerically(">", 0))
		Expect(best.Response.Values).NotTo(BeEmpty())
		for i := 1; i < len(all); i++ {
			Expect(all[i].Cost).To(BeNumerically(">=", all[i-1].Cost))
		}
		Expect(best.Cost).To(Equal(all[0].Cost))
	})

	It("rejects an empty grid", func() {
		_, _, err := tune.Search(context.Background(), motor, tune.Grid{P: []float64{1}}, tune.DefaultOptions())
		Expect(err).To(MatchError(tune.ErrEmptyGrid))
	})

	It("spaces grids", func() {
		Expect(tune.Linspace(0, 10, 3)).To(Equal([]float64{0, 5, 10}))
		log := tune.Logspace(1, 100, 3)
		Expect(log[1]).To(BeNumerically("~", 10, 1e-9))
	})
})

var _ = Describe("SimulateDiscrete", func() {
	It("tracks the target velocity within the power limit", func() {
		opts := tune.DefaultDiscreteOptions()
		ev, err := tune.SimulateDiscrete(context.Background(), motor, tune.Gains{P: 1000, I: 20}, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Stable).To(BeTrue())
		Expect(ev.Response.Final()).To(BeNumerically("~", opts.Target, 0.02*opts.Target))
		Expect(ev.PeakPower).To(BeNumerically("<=", opts.MaxPower))
		Expect(ev.Power).To(HaveLen(len(ev.Response.Times)))
	})

	It("saturates an aggressive controller", func() {
		opts := tune.DefaultDiscreteOptions()
		ev, err := tune.SimulateDiscrete(context.Background(), motor, tune.Gains{P: 20000, I: 100}, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.PeakPower).To(Equal(opts.MaxPower))
	})
})
