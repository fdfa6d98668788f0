package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/relay/pkg/activity"
	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/signature"
	"github.com/cuemby/relay/pkg/types"
)

// nonRetryableStatuses are 4xx responses spec.md §4.G calls out as
// terminal for a single delivery rather than retried.
var nonRetryableStatuses = map[int]bool{
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusGone:                true,
	http.StatusUnprocessableEntity: true,
}

func (d *Dispatcher) handleDeliverOne(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.DeliverOnePayload](job)
	if err != nil {
		return err
	}

	authority, err := types.AuthorityOf(payload.InboxIRI)
	if err != nil {
		return relayerr.New(relayerr.MalformedActivity, err)
	}

	allowed, _, err := d.breakers.Allow(authority)
	if err != nil {
		return err
	}
	if !allowed {
		// Still UNREACHABLE and not yet due for a retry attempt: drop this
		// delivery without counting it as a failure (spec.md §4.G).
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.InboxIRI, bytes.NewReader(payload.Body))
	if err != nil {
		return relayerr.New(relayerr.MalformedActivity, err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	if err := signature.Sign(req, payload.KeyID, d.identity.PrivateKey, payload.Body); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	resp, err := d.client.Do(req)
	timer.ObserveDuration(metrics.DeliveryDuration)
	if err != nil {
		d.breakers.RecordFailure(authority)
		metrics.DeliveryAttemptsTotal.WithLabelValues("transient_error").Inc()
		return relayerr.New(relayerr.NetworkTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		d.breakers.RecordSuccess(authority)
		metrics.DeliveryAttemptsTotal.WithLabelValues("success").Inc()
		if payload.ListenerActorIRI != "" {
			if updErr := d.repo.UpdateLastOnline(payload.ListenerActorIRI, time.Now().UTC()); updErr != nil {
				d.logger.Warn().Err(updErr).Msg("update last_online")
			}
		}
		return nil
	case nonRetryableStatuses[resp.StatusCode]:
		d.breakers.RecordFailure(authority)
		metrics.DeliveryAttemptsTotal.WithLabelValues("permanent_error").Inc()
		return relayerr.Newf(relayerr.NetworkPermanent, "deliver to %s: status %d", payload.InboxIRI, resp.StatusCode)
	default:
		d.breakers.RecordFailure(authority)
		metrics.DeliveryAttemptsTotal.WithLabelValues("transient_error").Inc()
		return relayerr.Newf(relayerr.NetworkTransient, "deliver to %s: status %d", payload.InboxIRI, resp.StatusCode)
	}
}

func (d *Dispatcher) handleAnnounce(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.AnnouncePayload](job)
	if err != nil {
		return err
	}

	listeners, err := d.repo.ListListeners(ctx)
	if err != nil {
		return err
	}

	announceBody, err := activity.BuildAnnounce(d.identity.ActorIRI, json.RawMessage(payload.InnerObject))
	if err != nil {
		return relayerr.New(relayerr.MalformedActivity, err)
	}
	keyID := d.identity.ActorIRI + "#main-key"

	for _, l := range listeners {
		if l.ActorIRI == payload.SourceActorIRI {
			continue
		}
		if err := d.submitDeliverOne(l, keyID, announceBody); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleActivityTemplate(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.ActivityTemplatePayload](job)
	if err != nil {
		return err
	}

	var body []byte
	switch job.Kind {
	case types.JobFollow:
		body, err = activity.BuildFollow(d.identity.ActorIRI, payload.TargetActorIRI)
	case types.JobAccept, types.JobReject:
		follow, parseErr := activity.Parse(payload.FollowRaw)
		if parseErr != nil {
			return relayerr.New(relayerr.MalformedActivity, parseErr)
		}
		if job.Kind == types.JobAccept {
			body, err = activity.BuildAccept(d.identity.ActorIRI, follow)
		} else {
			body, err = activity.BuildReject(d.identity.ActorIRI, follow)
		}
	case types.JobUndoFollow:
		body, err = activity.BuildUndoFollow(d.identity.ActorIRI, payload.TargetActorIRI)
	default:
		return relayerr.Newf(relayerr.MalformedActivity, "unexpected template job kind %q", job.Kind)
	}
	if err != nil {
		return relayerr.New(relayerr.MalformedActivity, err)
	}

	keyID := d.identity.ActorIRI + "#main-key"
	deliverJob, err := jobs.NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{
		InboxIRI: payload.TargetInboxIRI,
		KeyID:    keyID,
		Body:     body,
	})
	if err != nil {
		return err
	}
	return d.jobs.Submit(deliverJob)
}

func (d *Dispatcher) handleVerbatimRelay(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.VerbatimRelayPayload](job)
	if err != nil {
		return err
	}

	listeners, err := d.repo.ListListeners(ctx)
	if err != nil {
		return err
	}

	keyID := d.identity.ActorIRI + "#main-key"
	for _, l := range listeners {
		if l.ActorIRI == payload.SourceActorIRI {
			continue
		}
		if err := d.submitDeliverOne(l, keyID, payload.Activity); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleQueryNodeInfo(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.HostQueryPayload](job)
	if err != nil {
		return err
	}

	doc, err := fetchNodeInfo(ctx, d.client, payload.Host)
	if err != nil {
		return err
	}

	return d.repo.SaveNode(&types.Node{
		ListenerRef:      payload.Host,
		SoftwareName:     doc.Software.Name,
		SoftwareVersion:  doc.Software.Version,
		RegistrationOpen: doc.OpenRegistrations,
		UpdatedAt:        time.Now().UTC(),
	})
}

func (d *Dispatcher) handleQueryInstance(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.HostQueryPayload](job)
	if err != nil {
		return err
	}

	meta, err := fetchInstanceMeta(ctx, d.client, payload.Host)
	if err != nil {
		// Best-effort per spec.md §4.G: the host may not expose this
		// endpoint at all, that is not a delivery failure.
		d.logger.Debug().Err(err).Str("host", payload.Host).Msg("instance metadata unavailable")
		return nil
	}

	node, ok, err := d.repo.GetNode(payload.Host)
	if err != nil {
		return err
	}
	if !ok {
		node = &types.Node{ListenerRef: payload.Host}
	}
	node.Description = meta.Description
	node.Contact = meta.ContactEmail
	node.UpdatedAt = time.Now().UTC()
	return d.repo.SaveNode(node)
}

func (d *Dispatcher) handleRefreshActor(ctx context.Context, job *types.Job) error {
	payload, err := decodePayload[types.RefreshActorPayload](job)
	if err != nil {
		return err
	}
	return d.resolver.Invalidate(payload.ActorIRI)
}

func (d *Dispatcher) submitDeliverOne(l *types.Listener, keyID string, body []byte) error {
	deliverJob, err := jobs.NewJob(types.JobDeliverOne, types.QueueDeliver, types.DeliverOnePayload{
		InboxIRI:         l.InboxIRI,
		ListenerActorIRI: l.ActorIRI,
		KeyID:            keyID,
		Body:             body,
	})
	if err != nil {
		return err
	}
	return d.jobs.Submit(deliverJob)
}

func decodePayload[T any](job *types.Job) (T, error) {
	var payload T
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, relayerr.New(relayerr.MalformedActivity, err)
	}
	return payload, nil
}
