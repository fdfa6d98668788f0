/*
Package log provides structured logging for the relay using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helpers for the
common logging patterns used across the relay.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog instance, init'd via log.Init()  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("inbox")                   │          │
	│  │  - WithListener(actorIRI)                   │          │
	│  │  - WithJobID(jobID)                         │          │
	│  │  - WithHost(authority)                      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"inbox",       │          │
	│  │   "time":"2026-01-05T10:30:00Z",            │          │
	│  │   "message":"accepted follow"}              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	inboxLog := log.WithComponent("inbox")
	inboxLog.Info().Str("actor", actorIRI).Msg("follow accepted")

	deliverLog := log.WithJobID(job.ID)
	deliverLog.Error().Err(err).Msg("delivery attempt failed")

# Integration points

This package is used by cmd/relay, pkg/relay (top level wiring),
pkg/inbox, pkg/jobs, pkg/delivery, pkg/maintenance, pkg/httpapi,
pkg/resolver and pkg/repo.

# Best practices

Never log the private key PEM, the API token, or raw Signature/Authorization
header values - log the key ID and a boolean outcome instead.
*/
package log
