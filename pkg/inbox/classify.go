package inbox

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/activity"
	"github.com/cuemby/relay/pkg/jobs"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/types"
)

// classify applies the type table from spec.md §4.E step 5.
func (h *Handler) classify(ctx context.Context, act *activity.Activity) error {
	switch act.Type {
	case activity.KindFollow:
		return h.onFollow(ctx, act)
	case activity.KindAccept:
		return nil // Accept Follow: no-op, the relay already recorded the listener on send.
	case activity.KindReject:
		return h.onRejectFollow(act)
	case activity.KindUndo:
		return h.onUndoFollow(act)
	case activity.KindAnnounce, activity.KindCreate:
		return h.onFanoutSource(act)
	default:
		if act.IsVerbatimRelay() {
			return h.onVerbatimRelay(act)
		}
		return nil // unrecognized type: ignored, 200.
	}
}

// onFollow handles an inbound Follow. A Follow addressed at the relay's
// own actor (or the Public collection) creates a listener; anything else
// is rejected (spec.md §4.E type table, Follow rows).
func (h *Handler) onFollow(ctx context.Context, act *activity.Activity) error {
	if act.ObjectIRI() != h.identity.ActorIRI && act.ObjectIRI() != publicCollection {
		return h.submitTemplate(types.JobReject, act.ActorIRI(), "", act.Raw)
	}

	existing, ok, err := h.repo.GetListener(act.ActorIRI())
	if err != nil {
		return relayerr.New(relayerr.StoreTransient, err)
	}
	if !ok {
		inboxIRI, err := fetchInboxIRI(ctx, h.client, act.ActorIRI())
		if err != nil {
			return err
		}
		if err := h.repo.CreateListener(&types.Listener{
			ActorIRI:  act.ActorIRI(),
			InboxIRI:  inboxIRI,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return relayerr.New(relayerr.StoreTransient, err)
		}
		existing = &types.Listener{ActorIRI: act.ActorIRI(), InboxIRI: inboxIRI}
	}

	if err := h.submitTemplate(types.JobAccept, act.ActorIRI(), existing.InboxIRI, act.Raw); err != nil {
		return err
	}
	return h.submitFollowBack(act.ActorIRI(), existing.InboxIRI)
}

// onRejectFollow handles the listener rejecting the relay's reciprocal
// Follow: the listener is removed and the relay undoes its own Follow.
func (h *Handler) onRejectFollow(act *activity.Activity) error {
	if err := h.submitUndoFollow(act.ActorIRI()); err != nil {
		return err
	}
	return h.deleteListener(act.ActorIRI())
}

// onUndoFollow handles the listener undoing their Follow of the relay: the
// listener is removed and the relay reciprocally undoes its own Follow.
func (h *Handler) onUndoFollow(act *activity.Activity) error {
	if err := h.submitUndoFollow(act.ActorIRI()); err != nil {
		return err
	}
	return h.deleteListener(act.ActorIRI())
}

func (h *Handler) deleteListener(actorIRI string) error {
	if err := h.repo.DeleteListener(actorIRI); err != nil {
		return relayerr.New(relayerr.StoreTransient, err)
	}
	return nil
}

// onFanoutSource handles Announce/Create: deduplicate on (actor, inner
// object), then enqueue the Announce fan-out job.
func (h *Handler) onFanoutSource(act *activity.Activity) error {
	innerIRI := act.ObjectIRI()
	dup, err := h.dedup.Seen(act.ActorIRI(), innerIRI)
	if err != nil {
		return err
	}
	if dup {
		metrics.DedupSuppressedTotal.Inc()
		return nil
	}

	innerBody := act.Object.Raw
	if len(innerBody) == 0 {
		return nil // no object at all: nothing to relay
	}

	job, err := jobs.NewJob(types.JobAnnounce, types.QueueDeliver, types.AnnouncePayload{
		SourceActorIRI: act.ActorIRI(),
		InnerObjectIRI: innerIRI,
		InnerObject:    innerBody,
	})
	if err != nil {
		return err
	}
	return h.jobs.Submit(job)
}

// onVerbatimRelay handles Delete/Update/Add/Remove: fan out the received
// activity unmodified (spec.md §4.E type table, last row before "other").
func (h *Handler) onVerbatimRelay(act *activity.Activity) error {
	job, err := jobs.NewJob(types.JobVerbatimRelay, types.QueueDeliver, types.VerbatimRelayPayload{
		SourceActorIRI: act.ActorIRI(),
		Activity:       act.Raw,
	})
	if err != nil {
		return err
	}
	return h.jobs.Submit(job)
}

func (h *Handler) submitTemplate(kind types.JobKind, targetActorIRI, targetInboxIRI string, followRaw []byte) error {
	job, err := jobs.NewJob(kind, types.QueueDeliver, types.ActivityTemplatePayload{
		TargetActorIRI: targetActorIRI,
		TargetInboxIRI: targetInboxIRI,
		FollowRaw:      followRaw,
	})
	if err != nil {
		return err
	}
	return h.jobs.Submit(job)
}

func (h *Handler) submitFollowBack(targetActorIRI, targetInboxIRI string) error {
	return h.submitTemplate(types.JobFollow, targetActorIRI, targetInboxIRI, nil)
}

// submitUndoFollow addresses the Undo to the listener's stored inbox, so it
// runs before the listener is deleted.
func (h *Handler) submitUndoFollow(targetActorIRI string) error {
	listener, ok, err := h.repo.GetListener(targetActorIRI)
	inboxIRI := ""
	if err == nil && ok {
		inboxIRI = listener.InboxIRI
	}
	return h.submitTemplate(types.JobUndoFollow, targetActorIRI, inboxIRI, nil)
}

const publicCollection = "https://www.w3.org/ns/activitystreams#Public"
