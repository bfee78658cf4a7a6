// Package analysis provides spectral tools for force telemetry.
//
// A body held in a stream sheds vortices and its lift force oscillates.
// [DominantFrequency] recovers the shedding frequency from the sampled
// force:
//
//	fy, _ := storage.Column(samples, 0, "fy")
//	hz, err := analysis.DominantFrequency(fy, physicsHz)
package analysis
