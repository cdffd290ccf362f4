// Package metrics exposes Prometheus collectors for the reconciliation
// loop and the managed processes.
//
// Collectors are package-level and become live after Register. Until then
// every helper is a no-op, so packages can record unconditionally.
//
//	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
//	    return err
//	}
//	router.Handle("/metrics", metrics.Handler())
package metrics
