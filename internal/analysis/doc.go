// Package analysis turns captured encoder samples into motor statistics.
//
// The step pipeline differentiates positions into velocities, averages the
// tail of the driven phase for the final velocity and finds the 63.2% rise
// time:
//
//	v := analysis.Smooth(analysis.Velocities(samples), 9)
//	resp, err := analysis.Characterize(samples, v, 10000, analysis.DefaultTail)
//
// Frequency captures are fitted with a sinusoid ([FitSine]) whose amplitude
// and phase relative to the drive give one point of the Bode plot
// ([BodePoint]).
package analysis
