package inbox

import (
	"context"
	"io"
	"net/http"

	"github.com/cuemby/relay/pkg/activity"
	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/resolver"
	"github.com/cuemby/relay/pkg/signature"
	"github.com/cuemby/relay/pkg/tracing"
	"github.com/cuemby/relay/pkg/types"
	"github.com/rs/zerolog"
)

// MaxBody is the inbox body size cap from spec.md §4.E step 1.
const MaxBody = 256 * 1024

// Identity is the relay's own actor identity, needed to recognize a
// self-directed Follow and to address jobs it enqueues.
type Identity struct {
	ActorIRI string
	InboxIRI string
}

// Config configures a Handler.
type Config struct {
	Identity          Identity
	Repo              *repo.Repo
	Jobs              *jobs.Engine
	Resolver          *resolver.Resolver
	Dedup             *Dedup
	Replay            *signature.ReplayGuard
	Client            *http.Client
	ValidateSignature bool // false only in dev, per spec.md §4.C
	RestrictedMode    func() bool
}

// Handler implements POST /inbox, the Inbox Handler component
// (spec.md §4.E).
type Handler struct {
	identity   Identity
	repo       *repo.Repo
	jobs       *jobs.Engine
	resolver   *resolver.Resolver
	dedup      *Dedup
	replay     *signature.ReplayGuard
	client     *http.Client
	verifySigs bool
	restricted func() bool
	logger     zerolog.Logger
}

// New constructs a Handler from cfg.
func New(cfg Config) *Handler {
	restricted := cfg.RestrictedMode
	if restricted == nil {
		restricted = func() bool { return false }
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Handler{
		identity:   cfg.Identity,
		repo:       cfg.Repo,
		jobs:       cfg.Jobs,
		resolver:   cfg.Resolver,
		dedup:      cfg.Dedup,
		replay:     cfg.Replay,
		client:     client,
		verifySigs: cfg.ValidateSignature,
		restricted: restricted,
		logger:     log.WithComponent("inbox"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InboxRequestDuration)

	ctx, finishSpan := tracing.Start(r.Context(), "inbox.ServeHTTP")
	var spanErr error
	defer func() { finishSpan(spanErr) }()
	r = r.WithContext(ctx)

	body, err := h.readBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.verifySigs {
		parsed, err := signature.Verify(r, body, h.resolver.GetPublicKey)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if h.replay != nil && !h.replay.Check(parsed) {
			h.writeError(w, relayerr.New(relayerr.SignatureInvalid, errReplay))
			return
		}
	} else if err := signature.VerifyDigest(r.Header.Get("Digest"), body); err != nil {
		h.writeError(w, relayerr.New(relayerr.DigestMismatch, err))
		return
	}

	act, err := activity.Parse(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	domain, err := types.AuthorityOf(act.ActorIRI())
	if err != nil {
		h.writeError(w, relayerr.New(relayerr.MalformedActivity, err))
		return
	}
	allowed, err := h.repo.Authorize(domain, h.restricted())
	if err != nil {
		h.writeError(w, relayerr.New(relayerr.StoreTransient, err))
		return
	}
	if !allowed {
		h.writeError(w, relayerr.Newf(relayerr.Forbidden, "domain %q is not authorized", domain))
		return
	}

	if err := h.dispatch(r.Context(), act); err != nil {
		spanErr = err
		h.writeError(w, err)
		return
	}

	metrics.InboxRequestsTotal.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	limited := io.LimitReader(r.Body, MaxBody+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, relayerr.New(relayerr.NetworkTransient, err)
	}
	if len(body) > MaxBody {
		return nil, relayerr.Newf(relayerr.BodyTooLarge, "inbox body exceeds %d bytes", MaxBody)
	}
	return body, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := relayerr.KindOf(err)
	status := relayerr.HTTPStatus(kind)
	h.logger.Warn().Err(err).Int("status", status).Msg("rejected inbox delivery")
	metrics.InboxRequestsTotal.WithLabelValues("rejected").Inc()
	w.WriteHeader(status)
}

var errReplay = replayError{}

type replayError struct{}

func (replayError) Error() string { return "duplicate signature within replay window" }

// dispatch classifies act per spec.md §4.E step 5 and enqueues the jobs
// its effect calls for.
func (h *Handler) dispatch(ctx context.Context, act *activity.Activity) error {
	return h.classify(ctx, act)
}
