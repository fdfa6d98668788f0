// Package maintenance implements the Maintenance Loop component
// (spec.md §4.H): periodic sweeps that keep the rest of the relay honest
// without any inbound request driving them - requeuing orphaned jobs,
// refreshing stale actor documents, polling nodeinfo, and aging out
// contacts that have gone quiet or dead.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// TActor is the actor-document cache TTL (spec.md §3 Actor entity).
	TActor = 6 * time.Hour
	// TRefresh is how often the RefreshActor sweep runs.
	TRefresh = 6 * time.Hour
	// TNodeInfo is how often the QueryNodeInfo sweep runs per listener host.
	TNodeInfo = 24 * time.Hour
	// quietInterval is how long a host must sit in BACKING_OFF with no new
	// failures before the sweep promotes it back to HEALTHY.
	quietInterval = 10 * time.Minute
	// TPurge is how long a host may sit UNREACHABLE before its listeners
	// are removed (spec.md §4.H, §8 scenario 6).
	TPurge = 14 * 24 * time.Hour
)

// Loop runs the cron-scheduled sweeps. It owns no retry or delivery logic
// of its own - every sweep's only effect is enqueuing a Job or mutating
// Repository-owned records, so a crash mid-sweep is recovered the same way
// any other Job Engine failure is.
type Loop struct {
	repo *repo.Repo
	jobs *jobs.Engine

	mu     sync.Mutex
	cron   *cron.Cron
	logger zerolog.Logger
}

// New constructs a Loop. Call Start to begin running its sweeps.
func New(r *repo.Repo, j *jobs.Engine) *Loop {
	return &Loop{
		repo:   r,
		jobs:   j,
		cron:   cron.New(),
		logger: log.WithComponent("maintenance"),
	}
}

// Start schedules every sweep and begins running them in the background.
// Per spec.md §4.H: RefreshActor every T_refresh, QueryNodeInfo every
// T_nodeinfo, and a combined orphan/promotion/purge sweep every minute.
func (l *Loop) Start() error {
	if _, err := l.cron.AddFunc("@every 6h", l.runSafely("refresh_actors", l.refreshActors)); err != nil {
		return err
	}
	if _, err := l.cron.AddFunc("@every 24h", l.runSafely("query_nodeinfo", l.queryNodeInfo)); err != nil {
		return err
	}
	if _, err := l.cron.AddFunc("@every 1m", l.runSafely("minute_sweep", l.minuteSweep)); err != nil {
		return err
	}
	l.cron.Start()
	return nil
}

// Stop waits for any sweep in progress to finish, then halts scheduling.
func (l *Loop) Stop() {
	<-l.cron.Stop().Done()
}

func (l *Loop) runSafely(name string, fn func(ctx context.Context) error) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if err := fn(context.Background()); err != nil {
			l.logger.Error().Err(err).Str("sweep", name).Msg("maintenance sweep failed")
			metrics.MaintenanceSweepsTotal.WithLabelValues(name, "error").Inc()
			return
		}
		metrics.MaintenanceSweepsTotal.WithLabelValues(name, "ok").Inc()
	}
}

// refreshActors enqueues a RefreshActor job for every cached actor whose
// saved_at is older than T_actor, so the Actor Resolver's next lookup does
// not pay the fetch cost on the critical path of an inbound request.
func (l *Loop) refreshActors(ctx context.Context) error {
	actors, err := l.repo.ListActors(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-TActor)
	for _, a := range actors {
		if a.SavedAt.After(cutoff) {
			continue
		}
		job, err := jobs.NewJob(types.JobRefreshActor, types.QueueMaintenance, types.RefreshActorPayload{
			ActorIRI: a.ActorIRI,
		})
		if err != nil {
			return err
		}
		if err := l.jobs.Submit(job); err != nil {
			return err
		}
	}
	return nil
}

// queryNodeInfo enqueues one QueryNodeInfo job per distinct listener host,
// deduplicated so a relay with many listeners on the same host only polls
// it once per cycle.
func (l *Loop) queryNodeInfo(ctx context.Context) error {
	listeners, err := l.repo.ListListeners(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, lst := range listeners {
		authority, err := lst.InboxAuthority()
		if err != nil {
			l.logger.Warn().Err(err).Str("actor_iri", lst.ActorIRI).Msg("skipping listener with unparseable inbox")
			continue
		}
		if seen[authority] {
			continue
		}
		seen[authority] = true

		job, err := jobs.NewJob(types.JobQueryNodeInfo, types.QueueMaintenance, types.HostQueryPayload{
			Host: authority,
		})
		if err != nil {
			return err
		}
		if err := l.jobs.Submit(job); err != nil {
			return err
		}
	}
	return nil
}

// minuteSweep requeues orphaned jobs, promotes quiet BACKING_OFF hosts back
// to HEALTHY, purges listeners behind hosts that have been UNREACHABLE past
// T_purge, and evicts expired cached media.
func (l *Loop) minuteSweep(ctx context.Context) error {
	now := time.Now().UTC()

	if n, err := l.jobs.RequeueOrphans(ctx, now); err != nil {
		return err
	} else if n > 0 {
		l.logger.Info().Int("count", n).Msg("requeued orphaned jobs")
	}

	if err := l.promoteQuietHosts(ctx, now); err != nil {
		return err
	}
	if err := l.purgeUnreachableHosts(ctx, now); err != nil {
		return err
	}

	if n, err := l.repo.PurgeExpiredMedia(ctx, now); err != nil {
		return err
	} else if n > 0 {
		l.logger.Info().Int("count", n).Msg("purged expired media")
	}
	return nil
}

func (l *Loop) promoteQuietHosts(ctx context.Context, now time.Time) error {
	backingOff, err := l.repo.ListContactsByState(ctx, types.ContactBackingOff)
	if err != nil {
		return err
	}
	for _, c := range backingOff {
		if now.Sub(c.UpdatedAt) < quietInterval {
			continue
		}
		c.State = types.ContactHealthy
		c.ConsecutiveFailures = 0
		c.UpdatedAt = now
		if err := l.repo.SaveContact(c); err != nil {
			return err
		}
		l.logger.Info().Str("authority", c.Authority).Msg("promoted quiet host back to healthy")
	}
	return nil
}

func (l *Loop) purgeUnreachableHosts(ctx context.Context, now time.Time) error {
	unreachable, err := l.repo.ListContactsByState(ctx, types.ContactUnreachable)
	if err != nil {
		return err
	}
	for _, c := range unreachable {
		if c.BecameUnreachableAt == nil || now.Sub(*c.BecameUnreachableAt) < TPurge {
			continue
		}
		actorIRIs, err := l.repo.ListenerActorsForAuthority(c.Authority)
		if err != nil {
			return err
		}
		for _, actorIRI := range actorIRIs {
			if err := l.repo.DeleteListener(actorIRI); err != nil {
				return err
			}
		}
		if err := l.repo.DeleteContact(c.Authority); err != nil {
			return err
		}
		l.logger.Info().Str("authority", c.Authority).Int("listeners_removed", len(actorIRIs)).Msg("purged unreachable host")
	}
	return nil
}
