// Package metrics exposes Prometheus counters for logins, session
// operations and email verification, plus HTTP latencies.
//
//	m := metrics.New("authkit")
//	sessions := metrics.InstrumentSessions(manager, m)
//	router.Handle("/metrics", m.Handler())
package metrics
