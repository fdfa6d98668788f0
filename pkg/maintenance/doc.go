/*
Package maintenance is the Maintenance Loop component (spec.md §4.H): three
cron schedules that keep the relay's state honest between requests.

	every 6h   refresh_actors   RefreshActor job per actor older than T_actor
	every 24h  query_nodeinfo   QueryNodeInfo job per distinct listener host
	every 1m   minute_sweep     requeue orphaned jobs
	                            promote quiet BACKING_OFF hosts to HEALTHY
	                            purge listeners behind UNREACHABLE hosts past T_purge

Every sweep's only effect is enqueuing a Job or mutating a Repository-owned
record (Contact, Listener) - the loop holds no state of its own, so a crash
mid-sweep just means the next tick picks up where the last one left off.

A single mutex serializes the three sweeps against each other; none of them
need to run concurrently and serializing avoids surprising interleavings
like a purge racing a promotion for the same host.
*/
package maintenance
