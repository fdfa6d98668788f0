// Package relay wires every component the rest of this module implements
// into one running process: the State Repository, Job Engine, Actor
// Resolver, Inbox Handler, Delivery Workers, Maintenance Loop, HTTP API,
// and the Prometheus/health/tracing side channels (spec.md §4).
package relay

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/cuemby/relay/pkg/config"
	"github.com/cuemby/relay/pkg/delivery"
	"github.com/cuemby/relay/pkg/health"
	api "github.com/cuemby/relay/pkg/httpapi"
	"github.com/cuemby/relay/pkg/inbox"
	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/maintenance"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/repo"
	"github.com/cuemby/relay/pkg/resolver"
	"github.com/cuemby/relay/pkg/signature"
	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/tracing"
	"github.com/rs/zerolog"
)

// privateKeySettingKey is where the relay's RSA private key lives in the
// settings tree. Exactly one key exists for the lifetime of the data
// directory (spec.md §3, Private key entity); GetOrCreateSetting below
// generates it once and every restart reads the same value back.
const privateKeySettingKey = "relay_private_key_pem"

// schemaVersion is stamped into the settings tree on first run and
// checked on every subsequent startup (spec.md §6: "startup refuses to
// run against an incompatible version").
const schemaVersion = "1"

// Relay owns every long-running component and their shared dependencies.
// Start brings all of them up and, once its context is cancelled, shuts
// them down together.
type Relay struct {
	cfg *config.Config

	kv   store.KV
	repo *repo.Repo
	jobs *jobs.Engine

	resolver   *resolver.Resolver
	dispatcher *delivery.Dispatcher
	breakers   *delivery.ContactBreakers
	maint      *maintenance.Loop
	collector  *metrics.Collector
	health     *health.Registry
	httpServer *api.Server

	privateKeyPEM string
	publicKeyPEM  string

	tracingShutdown func(context.Context) error
	metricsHTTP     *http.Server

	logger zerolog.Logger
}

// New builds a Relay from cfg. It opens the data directory, checks the
// schema version, and constructs every component, but starts nothing -
// call Start to begin serving traffic.
func New(cfg *config.Config) (*Relay, error) {
	kv, err := store.Open(cfg.SledPath)
	if err != nil {
		return nil, relayerr.New(relayerr.StoreCorrupt, err)
	}

	r := &Relay{
		cfg:    cfg,
		kv:     kv,
		logger: log.WithComponent("relay"),
	}

	if err := r.checkSchemaVersion(); err != nil {
		_ = kv.Close()
		return nil, err
	}

	r.repo = repo.New(kv)
	r.jobs = jobs.New(kv)

	if err := r.loadOrGenerateKeys(); err != nil {
		_ = kv.Close()
		return nil, err
	}

	privKey, err := signature.ParsePrivateKey(r.privateKeyPEM)
	if err != nil {
		_ = kv.Close()
		return nil, relayerr.New(relayerr.StoreCorrupt, err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20 * max(cfg.ClientPoolSize, 1),
			MaxConnsPerHost:     20 * max(cfg.ClientPoolSize, 1),
		},
	}

	r.resolver = resolver.New(r.repo, resolver.NewHTTPFetcher(httpClient), maintenance.TActor)
	r.breakers = delivery.NewContactBreakers(r.repo, cfg.UnreachableThreshold)

	r.dispatcher = delivery.New(delivery.Config{
		Identity: delivery.RelayIdentity{
			ActorIRI:   cfg.ActorIRI(),
			InboxIRI:   cfg.InboxIRI(),
			PrivateKey: privKey,
		},
		Jobs:         r.jobs,
		Repo:         r.repo,
		Resolver:     r.resolver,
		Breakers:     r.breakers,
		Client:       httpClient,
		Workers:      cfg.ClientPoolSize * runtime.NumCPU(),
		PollInterval: 200 * time.Millisecond,
	})

	r.maint = maintenance.New(r.repo, r.jobs)
	r.collector = metrics.NewCollector(r.repo, r.jobs)
	r.health = health.NewRegistry(health.NewStoreChecker(kv))

	inboxHandler := inbox.New(inbox.Config{
		Identity:          inbox.Identity{ActorIRI: cfg.ActorIRI(), InboxIRI: cfg.InboxIRI()},
		Repo:              r.repo,
		Jobs:              r.jobs,
		Resolver:          r.resolver,
		Dedup:             inbox.NewDedup(kv),
		Replay:            signature.NewReplayGuard(time.Hour),
		Client:            httpClient,
		ValidateSignature: cfg.ValidateSignatures,
		RestrictedMode:    func() bool { return cfg.RestrictedMode },
	})

	r.httpServer = api.New(api.Config{
		Hostname: cfg.Hostname,
		HTTPS:    cfg.HTTPS,
		Identity: api.Identity{
			ActorIRI:     cfg.ActorIRI(),
			InboxIRI:     cfg.InboxIRI(),
			PublicKeyID:  cfg.ActorIRI() + "#main-key",
			PublicKeyPEM: r.publicKeyPEM,
		},
		APIToken:             cfg.APIToken,
		Repo:                 r.repo,
		Jobs:                 r.jobs,
		Health:               r.health,
		Inbox:                inboxHandler,
		LocalBlurb:           cfg.LocalBlurb,
		FooterBlurb:          cfg.FooterBlurb,
		SourceRepo:           cfg.SourceRepo,
		RepositoryCommitBase: cfg.RepositoryCommitBase,
		Version:              schemaVersion,
	})

	return r, nil
}

func (r *Relay) checkSchemaVersion() error {
	current, ok, err := r.repo.GetSchemaVersion()
	if err != nil {
		return relayerr.New(relayerr.StoreCorrupt, err)
	}
	if !ok {
		return r.repo.SetSchemaVersion(schemaVersion)
	}
	if current != schemaVersion {
		return relayerr.Newf(relayerr.ConfigInvalid, "data directory schema version %q is incompatible with this binary (%q)", current, schemaVersion)
	}
	return nil
}

func (r *Relay) loadOrGenerateKeys() error {
	privPEM, err := r.repo.GetOrCreateSetting(privateKeySettingKey, func() (string, error) {
		priv, _, err := signature.GenerateKeyPair()
		return priv, err
	})
	if err != nil {
		return relayerr.New(relayerr.StoreCorrupt, err)
	}
	privKey, err := signature.ParsePrivateKey(privPEM)
	if err != nil {
		return relayerr.New(relayerr.StoreCorrupt, err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		return relayerr.New(relayerr.StoreCorrupt, err)
	}
	r.privateKeyPEM = privPEM
	r.publicKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}))
	return nil
}

// Start brings every component up and blocks until ctx is cancelled, then
// waits up to 30s for the delivery workers to return, stops the collector,
// maintenance loop, metrics server and tracer, and closes the store last.
func (r *Relay) Start(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{Endpoint: r.cfg.OpenTelemetryURL, ServiceName: "relay"})
	if err != nil {
		return err
	}
	r.tracingShutdown = shutdown

	if err := r.maint.Start(); err != nil {
		return err
	}
	r.collector.Start()
	r.startMetricsServer()

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	dispatcherDone := make(chan struct{})
	go func() {
		r.dispatcher.Run(dispatchCtx)
		close(dispatcherDone)
	}()

	addr := net.JoinHostPort(r.cfg.Addr, fmt.Sprintf("%d", r.cfg.Port))
	err = r.httpServer.Start(ctx, addr)

	stopDispatch()
	select {
	case <-dispatcherDone:
	case <-time.After(30 * time.Second):
	}
	r.shutdownSideChannels(context.Background())
	return err
}

func (r *Relay) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := net.JoinHostPort(r.cfg.PrometheusAddr, fmt.Sprintf("%d", r.cfg.PrometheusPort))
	r.metricsHTTP = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := r.metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error().Err(err).Msg("metrics server")
		}
	}()
}

func (r *Relay) shutdownSideChannels(ctx context.Context) {
	r.collector.Stop()
	r.maint.Stop()
	if r.metricsHTTP != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = r.metricsHTTP.Shutdown(shutCtx)
	}
	if r.tracingShutdown != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = r.tracingShutdown(shutCtx)
	}
	if err := r.kv.Close(); err != nil {
		r.logger.Error().Err(err).Msg("close store")
	}
}
