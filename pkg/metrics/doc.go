/*
Package metrics exposes Prometheus metrics for the provisioning engine.

Metrics cover the declared graph (gauge per resource kind), engine
activity (created/failed/deleted counters, apply duration histogram) and
deployment outcomes. Handler returns the standard promhttp handler for
processes that serve a scrape endpoint; the CLI simply leaves the
collectors registered so long-running embedders can export them.

Timer Helper:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)
*/
package metrics
