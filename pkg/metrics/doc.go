/*
Package metrics exports the relay's Prometheus instrumentation, scraped at
PROMETHEUS_ADDR:PROMETHEUS_PORT (spec.md §6), separate from the public API.

# Metrics catalog

	relay_listeners_total                        gauge
	relay_contacts_total{state}                   gauge
	relay_job_queue_depth{queue,status}           gauge
	relay_inbox_requests_total{outcome}           counter
	relay_inbox_request_duration_seconds          histogram
	relay_dedup_suppressed_total                  counter
	relay_delivery_attempts_total{outcome}        counter
	relay_delivery_duration_seconds               histogram
	relay_maintenance_sweeps_total{sweep,outcome} counter

Gauges have no single triggering event, so Collector samples the
Repository and Job Engine every 15 seconds to populate them. Counters and
histograms are updated directly at the call site that observed the event
(pkg/inbox, pkg/delivery, pkg/maintenance).

# Usage

	timer := metrics.NewTimer()
	err := deliver(ctx, job)
	timer.ObserveDuration(metrics.DeliveryDuration)
	metrics.DeliveryAttemptsTotal.WithLabelValues(outcomeLabel(err)).Inc()
*/
package metrics
