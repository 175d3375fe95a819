// Package simulation runs one epidemic experiment from configuration to
// final trajectory.
//
// Run validates the experiment, seeds a private random stream, builds the
// topology, attraction field and population, then steps the spreading
// engine until the stop condition. Observers receive the attraction table
// once, a time-series row for the initial state (t = -1) and after every
// epoch, and the final result. The loop is single-threaded; independent
// experiments may run concurrently as long as each has its own observers.
//
// The package also exports Assert* helpers and a Recorder observer for
// property tests over recorded trajectories.
//
// Usage:
//
//	rec := &simulation.Recorder{}
//	result, err := simulation.Run(ctx, exp, simulation.Options{
//	    Observers: []simulation.Observer{rec},
//	})
//	if err != nil {
//	    t.Fatal(err)
//	}
//	simulation.AssertPartition(t, rec)
//	simulation.AssertConservation(t, result)
package simulation
