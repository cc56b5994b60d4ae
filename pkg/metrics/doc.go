/*
Package metrics provides Prometheus metrics collection and exposition for
cronfleet.

It defines the package-level metric vars incremented inline by pkg/engine
at the point each event happens (task created, dispatch outcome, agent
evicted or promoted) plus a Collector that polls a Source on an interval
to republish gauges (task/agent/slot counts) that are cheaper to read
as a snapshot than to track incrementally.

# Metrics

	cronfleet_tasks_total                         gauge
	cronfleet_agents_total{status}                 gauge, status=active|pending
	cronfleet_slots_total                          gauge
	cronfleet_tasks_created_total                  counter
	cronfleet_tasks_exited_total{reason}            counter, reason=removed|exhausted|one_shot_complete
	cronfleet_dispatches_total{outcome}             counter, outcome=rescheduled|exited|invocation_failed
	cronfleet_dispatch_duration_seconds             histogram
	cronfleet_agents_registered_total              counter
	cronfleet_agents_evicted_total                 counter
	cronfleet_agents_promoted_total                counter
	cronfleet_heartbeat_duration_seconds           histogram
	cronfleet_api_requests_total{route, status}    counter
	cronfleet_api_request_duration_seconds{route}  histogram

# Health

health.go exposes a HealthChecker independent of the metric vars above:
components register themselves with RegisterComponent, and /health,
/ready and /live are served from its aggregate view. cmd/cronfleetd registers
"storage", "engine" and "api" as the critical components checked by
/ready.
*/
package metrics
