package inbox

import (
	"time"

	"github.com/cuemby/relay/pkg/relayerr"
	"github.com/cuemby/relay/pkg/store"
)

// dedupWindow is T_dedup from spec.md §4.E step 6: repeated Announce/Create
// fan-out requests for the same (actor, inner object) pair within this
// window are suppressed.
const dedupWindow = 5 * time.Minute

// Dedup tracks recently seen (actor_iri, inner_object_iri) pairs directly
// against store.TreeDedup, so the suppression window survives a restart
// (unlike signature.ReplayGuard, which is deliberately in-memory only).
type Dedup struct {
	kv store.KV
}

// NewDedup wraps kv for dedup bookkeeping.
func NewDedup(kv store.KV) *Dedup {
	return &Dedup{kv: kv}
}

// Seen reports whether (actorIRI, innerObjectIRI) was already recorded
// within dedupWindow and, if not, records it now. A true result means the
// caller should suppress fan-out.
func (d *Dedup) Seen(actorIRI, innerObjectIRI string) (bool, error) {
	key := dedupKey(actorIRI, innerObjectIRI)
	now := time.Now().UTC()

	existing, ok, err := d.kv.Get(store.TreeDedup, key)
	if err != nil {
		return false, relayerr.New(relayerr.StoreTransient, err)
	}
	if ok {
		seenAt, parseErr := time.Parse(time.RFC3339Nano, string(existing))
		if parseErr == nil && now.Sub(seenAt) < dedupWindow {
			return true, nil
		}
	}

	if err := d.kv.Put(store.TreeDedup, key, []byte(now.Format(time.RFC3339Nano))); err != nil {
		return false, relayerr.New(relayerr.StoreTransient, err)
	}
	return false, nil
}

func dedupKey(actorIRI, innerObjectIRI string) []byte {
	return []byte(actorIRI + "\x00" + innerObjectIRI)
}
