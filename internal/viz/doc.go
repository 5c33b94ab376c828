// Package viz provides the terminal live view of a running capture.
//
// The view is a Bubble Tea program fed by the capture observer: every
// recorded sample becomes a [SampleMsg] and the view redraws at a fixed
// frame rate with the latest velocity and power history.
//
// # Key Bindings
//
//	Space - Freeze/unfreeze the display (capture keeps running)
//	T     - Cycle color themes
//	Q     - Stop the capture and quit
package viz
