// Package fluid runs incompressible 2D fluid domains on a compute device.
//
// A Simulation owns any number of domains. Each domain holds the staggered
// grid buffers of one fluid body and moves through a small state machine on
// every poll: it waits in Loading until every pipeline has compiled, runs the
// initialize pass once, and then runs exactly one step per new host tick.
// A step is ten ordered compute passes:
//
//	update_solid          rasterize obstacles, clear solid/air pressure
//	advect_velocity       semi-Lagrangian transport of u and v
//	apply_forces          gravity and queued point forces
//	divergence
//	solve_pressure        Jacobi sweeps, forward then reverse
//	solve_velocity        subtract the pressure gradient
//	extrapolate_velocity  extend velocity into the air band
//	advect_levelset
//	reinitialize_levelset jump flooding back to a signed distance
//	fluid_to_solid        pressure forces per solid id
//
// The per-solid forces of every step are copied out after the step and
// handed to the ReadbackHandler on a callback goroutine.
package fluid
