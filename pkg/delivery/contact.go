package delivery

import (
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ContactBreakers manages one gobreaker.CircuitBreaker per inbox
// authority, the connected-host contact state machine from spec.md §3
// (HEALTHY/BACKING_OFF/UNREACHABLE). Breaker state transitions are
// mirrored into the Repository so they survive restarts and are visible
// to the maintenance loop's promotion/purge sweeps.
type ContactBreakers struct {
	repo      *repo.Repo
	threshold uint32
	logger    zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewContactBreakers constructs the breaker set. threshold is the
// consecutive-failure count before a host is marked UNREACHABLE
// (spec.md §9 open question, resolved in SPEC_FULL.md: default 5,
// configurable via UNREACHABLE_THRESHOLD).
func NewContactBreakers(r *repo.Repo, threshold int) *ContactBreakers {
	return &ContactBreakers{
		repo:      r,
		threshold: uint32(threshold),
		logger:    log.WithComponent("delivery.contact"),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (c *ContactBreakers) breakerFor(authority string) *gobreaker.CircuitBreaker[any] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[authority]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        authority,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.persistState(name, to)
		},
	}
	b := gobreaker.NewCircuitBreaker[any](settings)
	c.breakers[authority] = b
	return b
}

func (c *ContactBreakers) persistState(authority string, state gobreaker.State) {
	contact, ok, err := c.repo.GetContact(authority)
	if err != nil {
		c.logger.Warn().Err(err).Str("authority", authority).Msg("load contact state")
		return
	}
	if !ok {
		contact = &types.Contact{Authority: authority}
	}

	now := time.Now().UTC()
	switch state {
	case gobreaker.StateClosed:
		contact.State = types.ContactHealthy
		contact.ConsecutiveFailures = 0
		contact.BecameUnreachableAt = nil
	case gobreaker.StateHalfOpen:
		contact.State = types.ContactBackingOff
	case gobreaker.StateOpen:
		contact.State = types.ContactUnreachable
		if contact.BecameUnreachableAt == nil {
			contact.BecameUnreachableAt = &now
		}
	}
	contact.UpdatedAt = now
	if err := c.repo.SaveContact(contact); err != nil {
		c.logger.Warn().Err(err).Str("authority", authority).Msg("persist contact state")
	}
}

// Allow reports whether a delivery attempt to authority should proceed
// right now, also returning the current contact record (nil if none on
// file yet).
func (c *ContactBreakers) Allow(authority string) (bool, *types.Contact, error) {
	contact, ok, err := c.repo.GetContact(authority)
	if err != nil {
		return false, nil, err
	}
	if ok && contact.State == types.ContactUnreachable && time.Now().UTC().Before(contact.NextRetryAfter) {
		return false, contact, nil
	}
	return true, contact, nil
}

// RecordSuccess reports a successful delivery to authority, clearing
// failures and moving the breaker back towards HEALTHY.
func (c *ContactBreakers) RecordSuccess(authority string) {
	b := c.breakerFor(authority)
	_, _ = b.Execute(func() (any, error) { return nil, nil })
	c.clearFailureBookkeeping(authority)
}

func (c *ContactBreakers) clearFailureBookkeeping(authority string) {
	contact, ok, err := c.repo.GetContact(authority)
	if err != nil || !ok {
		return
	}
	contact.ConsecutiveFailures = 0
	contact.UpdatedAt = time.Now().UTC()
	_ = c.repo.SaveContact(contact)
}

// RecordFailure reports a failed delivery attempt to authority, updating
// consecutive-failure bookkeeping and the breaker.
func (c *ContactBreakers) RecordFailure(authority string) {
	b := c.breakerFor(authority)
	_, _ = b.Execute(func() (any, error) { return nil, errBreakerFailure })

	contact, ok, err := c.repo.GetContact(authority)
	if err != nil {
		return
	}
	if !ok {
		contact = &types.Contact{Authority: authority}
	}
	contact.ConsecutiveFailures++
	contact.NextRetryAfter = time.Now().UTC().Add(retryBackoffFor(contact.ConsecutiveFailures))
	contact.UpdatedAt = time.Now().UTC()
	_ = c.repo.SaveContact(contact)
}

func retryBackoffFor(consecutiveFailures int) time.Duration {
	d := time.Minute
	for i := 1; i < consecutiveFailures && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

var errBreakerFailure = breakerFailure{}

type breakerFailure struct{}

func (breakerFailure) Error() string { return "delivery failed" }
