// Package delivery is the Delivery Workers component (spec.md §4.G): the
// job handlers that turn queued work into signed outbound HTTP requests,
// plus the dispatcher loop that pulls jobs from the Job Engine and runs
// them against a bounded worker pool.
package delivery

import (
	"context"
	"crypto/rsa"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/resolver"
	"github.com/cuemby/relay/pkg/tracing"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
)

// RelayIdentity is the relay's own actor identity, threaded explicitly
// into the dispatcher rather than read from global state (spec.md §9:
// "process-wide immutable-after-init config struct passed explicitly").
type RelayIdentity struct {
	ActorIRI   string
	InboxIRI   string
	PrivateKey *rsa.PrivateKey
}

// Dispatcher pulls ready jobs off the deliver queue (and, when no delivery
// is ready, off the maintenance queue) and runs them against
// a bounded pool of goroutines, one per configured worker slot
// (spec.md §5: "Worker count defaults to CLIENT_POOL_SIZE × cores").
type Dispatcher struct {
	identity  RelayIdentity
	jobs      *jobs.Engine
	repo      *repo.Repo
	resolver  *resolver.Resolver
	breakers  *ContactBreakers
	client    *http.Client
	workers   int
	pollEvery time.Duration

	logger zerolog.Logger
}

// Config configures a Dispatcher.
type Config struct {
	Identity     RelayIdentity
	Jobs         *jobs.Engine
	Repo         *repo.Repo
	Resolver     *resolver.Resolver
	Breakers     *ContactBreakers
	Client       *http.Client
	Workers      int
	PollInterval time.Duration
}

// New constructs a Dispatcher from cfg, filling in defaults for anything
// left zero.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Dispatcher{
		identity:  cfg.Identity,
		jobs:      cfg.Jobs,
		repo:      cfg.Repo,
		resolver:  cfg.Resolver,
		breakers:  cfg.Breakers,
		client:    cfg.Client,
		workers:   cfg.Workers,
		pollEvery: cfg.PollInterval,
		logger:    log.WithComponent("delivery"),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. Each
// worker polls Consume (deliver, then maintenance) on a ticker; an empty poll just sleeps
// for the next tick, matching the teacher's ticker+stopCh loop shape.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	for _, queue := range []string{types.QueueDeliver, types.QueueMaintenance} {
		job, ok, err := d.jobs.Consume(ctx, queue)
		if err != nil {
			d.logger.Error().Err(err).Str("queue", queue).Msg("consume queue")
			return
		}
		if ok {
			d.handle(ctx, job)
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, job *types.Job) {
	logger := log.WithJobID(job.ID)
	var err error

	ctx, finishSpan := tracing.Start(ctx, "delivery."+string(job.Kind))
	defer func() { finishSpan(err) }()

	switch job.Kind {
	case types.JobDeliverOne:
		err = d.handleDeliverOne(ctx, job)
	case types.JobAnnounce:
		err = d.handleAnnounce(ctx, job)
	case types.JobFollow, types.JobAccept, types.JobReject, types.JobUndoFollow:
		err = d.handleActivityTemplate(ctx, job)
	case types.JobVerbatimRelay:
		err = d.handleVerbatimRelay(ctx, job)
	case types.JobQueryNodeInfo:
		err = d.handleQueryNodeInfo(ctx, job)
	case types.JobQueryInstance:
		err = d.handleQueryInstance(ctx, job)
	case types.JobRefreshActor:
		err = d.handleRefreshActor(ctx, job)
	default:
		logger.Warn().Str("kind", string(job.Kind)).Msg("unknown job kind, acking")
		err = nil
	}

	if err == nil {
		if ackErr := d.jobs.Ack(job); ackErr != nil {
			logger.Error().Err(ackErr).Msg("ack job")
		}
		return
	}

	if relayerr.Retryable(relayerr.KindOf(err)) {
		if retryErr := d.jobs.Retry(job, err); retryErr != nil {
			logger.Error().Err(retryErr).Msg("retry job")
		}
		return
	}

	logger.Warn().Err(err).Str("kind", string(job.Kind)).Msg("job failed terminally")
	if ackErr := d.jobs.Ack(job); ackErr != nil {
		logger.Error().Err(ackErr).Msg("ack terminally failed job")
	}
}

func (d *Dispatcher) enqueue(kind types.JobKind, queue string, payload any) error {
	job, err := jobs.NewJob(kind, queue, payload)
	if err != nil {
		return err
	}
	return d.jobs.Submit(job)
}
