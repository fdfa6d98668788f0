// Package jobs is the Job Engine (spec.md §4.F): a durable typed queue
// built directly on the KV Store Adapter. Unlike pkg/repo, this package
// owns the jobs tree itself - job lifecycle (lease, retry, ack) doesn't
// fit the plain CRUD shape the rest of the Repository gives.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobTimeout is how long a job may sit in status=running before the
// maintenance sweep considers its worker dead and requeues it
// (spec.md §4.F, §4.H).
const JobTimeout = 5 * time.Minute

// Engine is the Job Engine.
type Engine struct {
	kv     store.KV
	logger zerolog.Logger

	// mu serializes the read-modify-write sequences Consume/Ack/Retry
	// perform against the jobs tree; bbolt gives single-key atomicity but
	// "find a ready job and flip it to running" spans a scan plus a
	// write, so the engine needs its own critical section.
	mu sync.Mutex

	// busyAuthorities holds the inbox authorities currently leased to a
	// DeliverOne job, enforcing per-host serialization (spec.md §4.F).
	busyAuthorities map[string]bool
}

// New constructs a Job Engine over kv.
func New(kv store.KV) *Engine {
	return &Engine{
		kv:              kv,
		logger:          log.WithComponent("jobs"),
		busyAuthorities: make(map[string]bool),
	}
}

// NewJob constructs a pending job ready for Submit.
func NewJob(kind types.JobKind, queue string, payload any) (*types.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	now := time.Now().UTC()
	return &types.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Queue:     queue,
		Payload:   body,
		Status:    types.JobPending,
		NextRunAt: now,
		CreatedAt: now,
	}, nil
}

// Submit persists job if its ID is not already present; a resubmission of
// the same job_id is a no-op (spec.md §4.F).
func (e *Engine) Submit(job *types.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok, err := e.kv.Get(store.TreeJobs, []byte(job.ID))
	if err != nil {
		return wrapErr(err)
	}
	if ok {
		return nil
	}
	return e.put(job)
}

func (e *Engine) put(job *types.Job) error {
	val, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return wrapErr(e.kv.Put(store.TreeJobs, []byte(job.ID), val))
}

func (e *Engine) hostAuthority(job *types.Job) (string, bool) {
	if job.Kind != types.JobDeliverOne {
		return "", false
	}
	var payload types.DeliverOnePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", false
	}
	authority, err := types.AuthorityOf(payload.InboxIRI)
	if err != nil {
		return "", false
	}
	return authority, true
}

// Consume atomically transitions the oldest ready job on queue
// (status=pending, next_run_at<=now) to status=running and returns it. It
// returns ok=false if no job is ready - not an error, a normal poll result.
// DeliverOne jobs addressed to an authority already leased to another
// in-flight DeliverOne are skipped so per-host delivery never runs
// concurrently.
func (e *Engine) Consume(ctx context.Context, queue string) (job *types.Job, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	var candidate *types.Job
	var candidateAuthority string
	var candidateLeased bool

	rangeErr := e.kv.Range(ctx, store.TreeJobs, nil, func(k, v []byte) (bool, error) {
		var j types.Job
		if err := json.Unmarshal(v, &j); err != nil {
			return true, nil
		}
		if j.Queue != queue || j.Status != types.JobPending || j.NextRunAt.After(now) {
			return true, nil
		}
		authority, leased := e.hostAuthority(&j)
		if leased && e.busyAuthorities[authority] {
			return true, nil
		}
		if candidate == nil || j.CreatedAt.Before(candidate.CreatedAt) {
			jCopy := j
			candidate = &jCopy
			candidateAuthority = authority
			candidateLeased = leased
		}
		return true, nil
	})
	if rangeErr != nil {
		return nil, false, wrapErr(rangeErr)
	}
	if candidate == nil {
		return nil, false, nil
	}

	candidate.Status = types.JobRunning
	candidate.TimeoutAt = now.Add(JobTimeout)
	if err := e.put(candidate); err != nil {
		return nil, false, err
	}
	if candidateLeased {
		e.busyAuthorities[candidateAuthority] = true
	}
	return candidate, true, nil
}

// Ack marks job complete and deletes its record, releasing any per-host
// lease it held.
func (e *Engine) Ack(job *types.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLease(job)
	return wrapErr(e.kv.Delete(store.TreeJobs, []byte(job.ID)))
}

// Retry increments attempts and either reschedules job with backoff or
// marks it failed once MaxAttempts is reached (spec.md §4.F).
func (e *Engine) Retry(job *types.Job, cause error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLease(job)

	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempts >= MaxAttempts {
		job.Status = types.JobFailed
		e.logger.Warn().Str("job_id", job.ID).Str("kind", string(job.Kind)).Int("attempts", job.Attempts).Msg("job exhausted retries")
		return e.put(job)
	}
	job.Status = types.JobPending
	job.NextRunAt = time.Now().UTC().Add(Backoff(job.Attempts))
	return e.put(job)
}

func (e *Engine) releaseLease(job *types.Job) {
	if authority, leased := e.hostAuthority(job); leased {
		delete(e.busyAuthorities, authority)
	}
}

// RequeueOrphans requeues every running job whose timeout_at has passed,
// releasing its host lease (the worker that held it is presumed dead).
// Called from the maintenance loop's per-minute sweep (spec.md §4.H).
func (e *Engine) RequeueOrphans(ctx context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var orphans []*types.Job
	err := e.kv.Range(ctx, store.TreeJobs, nil, func(k, v []byte) (bool, error) {
		var j types.Job
		if err := json.Unmarshal(v, &j); err != nil {
			return true, nil
		}
		if j.Status == types.JobRunning && now.After(j.TimeoutAt) {
			jCopy := j
			orphans = append(orphans, &jCopy)
		}
		return true, nil
	})
	if err != nil {
		return 0, wrapErr(err)
	}

	for _, j := range orphans {
		e.releaseLease(j)
		j.Status = types.JobPending
		j.NextRunAt = now
		if err := e.put(j); err != nil {
			return 0, err
		}
	}
	return len(orphans), nil
}

// CountByQueueAndStatus returns the number of jobs in each (queue, status)
// pair, used by pkg/metrics's collector to report queue depth gauges.
func (e *Engine) CountByQueueAndStatus(ctx context.Context) (map[string]map[types.JobStatus]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[string]map[types.JobStatus]int)
	err := e.kv.Range(ctx, store.TreeJobs, nil, func(k, v []byte) (bool, error) {
		var j types.Job
		if err := json.Unmarshal(v, &j); err != nil {
			return true, nil
		}
		if counts[j.Queue] == nil {
			counts[j.Queue] = make(map[types.JobStatus]int)
		}
		counts[j.Queue][j.Status]++
		return true, nil
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return counts, nil
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return relayerr.New(relayerr.StoreTransient, err)
}
