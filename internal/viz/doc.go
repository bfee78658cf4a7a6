// Package viz renders fluid domains in the terminal and to images.
//
//   - [Layer]: character view of a domain with a velocity arrow overlay
//   - [Canvas]: Braille dot canvas for a denser view
//   - [LiveModel]: Bubble Tea view stepping a simulator in real time
//   - [Plot], [PlotSpectrum]: asciigraph plots of telemetry
//   - [WritePNG], [WriteGIF]: image snapshots and recordings
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset every domain
//	A     - Toggle velocity arrows
//	B     - Toggle Braille view
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//
// Dragging with the left mouse button pushes the fluid under the cursor.
package viz
