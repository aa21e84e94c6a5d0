// Package testutil provides testing utilities for hyperhist.
//
// This package is intended for use in tests and benchmarks only.
// It provides reproducible random point sets.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	ps := rng.UniformPoints(1000, testutil.UnitBox(3))
//	ps = rng.ClusteredPoints(1000, 4, testutil.UnitBox(3), 0.05)
package testutil
