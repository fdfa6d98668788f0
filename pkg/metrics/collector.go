package metrics

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/types"
)

// Collector periodically samples Repository and Job Engine state into the
// gauges that metrics.go declares, since gauge values (listener count,
// contact state distribution, queue depth) have no single event that
// would otherwise update them.
type Collector struct {
	repo *repo.Repo
	jobs *jobs.Engine

	stopCh chan struct{}
}

// NewCollector constructs a Collector over repo and jobs.
func NewCollector(r *repo.Repo, j *jobs.Engine) *Collector {
	return &Collector{repo: r, jobs: j, stopCh: make(chan struct{})}
}

// Start begins sampling every 15 seconds, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx := context.Background()
	c.collectListeners(ctx)
	c.collectContacts(ctx)
	c.collectQueueDepth(ctx)
}

func (c *Collector) collectListeners(ctx context.Context) {
	listeners, err := c.repo.ListListeners(ctx)
	if err != nil {
		return
	}
	ListenersTotal.Set(float64(len(listeners)))
}

func (c *Collector) collectContacts(ctx context.Context) {
	contacts, err := c.repo.ListContacts(ctx)
	if err != nil {
		return
	}
	counts := map[types.ContactStatus]int{
		types.ContactHealthy:     0,
		types.ContactBackingOff:  0,
		types.ContactUnreachable: 0,
	}
	for _, contact := range contacts {
		counts[contact.State]++
	}
	for state, count := range counts {
		ContactsByState.WithLabelValues(string(state)).Set(float64(count))
	}
}

func (c *Collector) collectQueueDepth(ctx context.Context) {
	counts, err := c.jobs.CountByQueueAndStatus(ctx)
	if err != nil {
		return
	}
	for queue, byStatus := range counts {
		for status, n := range byStatus {
			JobQueueDepth.WithLabelValues(queue, string(status)).Set(float64(n))
		}
	}
}
