// Package resolver is the Actor Resolver (spec.md §4.D): it turns a
// keyId from an inbound Signature header into a cached public key,
// fetching and persisting the owning actor document on a cache miss.
package resolver

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/signature"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Fetcher retrieves a remote actor document. Satisfied by *HTTPFetcher in
// production and stubbed in tests.
type Fetcher interface {
	FetchActor(ctx context.Context, keyID string) (*Document, error)
}

// Resolver caches remote actor documents, coalesces concurrent fetches of
// the same keyId through a single-flight group, and rate-limits per-host
// re-fetches (spec.md §2 row D).
type Resolver struct {
	repo    *repo.Repo
	fetcher Fetcher
	ttl     time.Duration
	logger  zerolog.Logger

	group singleflight.Group

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a Resolver. ttl is T_actor from spec.md §3 (Actor entity).
func New(r *repo.Repo, fetcher Fetcher, ttl time.Duration) *Resolver {
	return &Resolver{
		repo:     r,
		fetcher:  fetcher,
		ttl:      ttl,
		logger:   log.WithComponent("resolver"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// perHostLimiter returns (creating if absent) a rate limiter for host,
// one re-fetch per 10 seconds with a burst of 2 - generous enough for a
// cold cache warming up, tight enough to stop a hostile peer from forcing
// refetch storms.
func (r *Resolver) perHostLimiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(10*time.Second), 2)
		r.limiters[host] = l
	}
	return l
}

// Resolve returns the actor document for keyId, serving from cache when
// fresh and otherwise fetching it. Concurrent callers resolving the same
// keyId coalesce onto one fetch (spec.md §4.D).
func (r *Resolver) Resolve(ctx context.Context, keyID string) (*types.Actor, error) {
	cached, ok, err := r.repo.GetActorByKeyID(keyID)
	if err != nil {
		return nil, err
	}
	if ok && time.Since(cached.SavedAt) < r.ttl {
		return cached, nil
	}

	v, err, _ := r.group.Do(keyID, func() (any, error) {
		return r.fetchAndSave(ctx, keyID)
	})
	if err != nil {
		if ok && !relayerr.Is(err, relayerr.NetworkPermanent) {
			// Stale cache beats no answer for a transient fetch failure.
			r.logger.Warn().Err(err).Str("key_id", keyID).Msg("refresh failed, serving stale actor")
			return cached, nil
		}
		return nil, err
	}
	return v.(*types.Actor), nil
}

func (r *Resolver) fetchAndSave(ctx context.Context, keyID string) (*types.Actor, error) {
	host, err := types.AuthorityOf(keyID)
	if err != nil {
		return nil, relayerr.New(relayerr.MalformedActivity, err)
	}
	if err := r.perHostLimiter(host).Wait(ctx); err != nil {
		return nil, relayerr.New(relayerr.ActorUnavailable, err)
	}

	doc, err := r.fetcher.FetchActor(ctx, keyID)
	if err != nil {
		if relayerr.Is(err, relayerr.NetworkPermanent) {
			if existing, ok, lookupErr := r.repo.GetActorByKeyID(keyID); lookupErr == nil && ok {
				if delErr := r.repo.DeleteActor(existing.ActorIRI); delErr != nil {
					r.logger.Warn().Err(delErr).Msg("evict actor after permanent fetch failure")
				}
			}
		}
		return nil, err
	}

	actor := &types.Actor{
		ActorIRI:     doc.ActorIRI,
		PublicKeyPEM: doc.PublicKeyPEM,
		PublicKeyID:  doc.PublicKeyID,
		SavedAt:      time.Now().UTC(),
	}
	if existing, ok, err := r.repo.GetActorByIRI(doc.ActorIRI); err == nil && ok {
		actor.ListenerRef = existing.ListenerRef
	}
	if err := r.repo.SaveActor(actor); err != nil {
		return nil, err
	}
	return actor, nil
}

// GetPublicKey resolves keyId straight to an *rsa.PublicKey, the shape
// signature.Verify expects as its PublicKeyLookup.
func (r *Resolver) GetPublicKey(keyID string) (*rsa.PublicKey, error) {
	actor, err := r.Resolve(context.Background(), keyID)
	if err != nil {
		return nil, err
	}
	if actor.PublicKeyID != keyID {
		return nil, relayerr.Newf(relayerr.SignatureInvalid, "resolved actor key_id %q does not match requested %q", actor.PublicKeyID, keyID)
	}
	return signature.ParsePublicKey(actor.PublicKeyPEM)
}

// Invalidate drops actorIRI's cache entry so the next Resolve re-fetches
// it, used by the RefreshActor job handler (spec.md §4.G).
func (r *Resolver) Invalidate(actorIRI string) error {
	return r.repo.DeleteActor(actorIRI)
}
