package repo

import (
	"context"
	"time"

	"github.com/cuemby/relay/pkg/store"
	"github.com/cuemby/relay/pkg/types"
)

type nodeRecord struct {
	SoftwareName     string    `json:"software"`
	SoftwareVersion  string    `json:"version"`
	RegistrationOpen bool      `json:"reg_open"`
	Description      string    `json:"description"`
	Contact          string    `json:"contact"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SaveNode upserts cached NodeInfo/instance metadata for a listener.
// Absence means "not yet discovered" (spec.md data model, Node).
func (r *Repo) SaveNode(n *types.Node) error {
	rec := nodeRecord{
		SoftwareName:     n.SoftwareName,
		SoftwareVersion:  n.SoftwareVersion,
		RegistrationOpen: n.RegistrationOpen,
		Description:      n.Description,
		Contact:          n.Contact,
		UpdatedAt:        n.UpdatedAt,
	}
	val, err := encode(rec)
	if err != nil {
		return err
	}
	return wrapStoreErr(r.kv.Put(store.TreeNodes, []byte(n.ListenerRef), val))
}

// GetNode returns the cached node metadata for a listener, if discovered.
func (r *Repo) GetNode(listenerRef string) (*types.Node, bool, error) {
	val, ok, err := r.kv.Get(store.TreeNodes, []byte(listenerRef))
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec nodeRecord
	if err := decode(val, &rec); err != nil {
		return nil, false, err
	}
	return &types.Node{
		ListenerRef:      listenerRef,
		SoftwareName:     rec.SoftwareName,
		SoftwareVersion:  rec.SoftwareVersion,
		RegistrationOpen: rec.RegistrationOpen,
		Description:      rec.Description,
		Contact:          rec.Contact,
		UpdatedAt:        rec.UpdatedAt,
	}, true, nil
}

// DeleteNode removes cached metadata, e.g. when its listener is purged.
func (r *Repo) DeleteNode(listenerRef string) error {
	return wrapStoreErr(r.kv.Delete(store.TreeNodes, []byte(listenerRef)))
}

// ListNodes returns every cached node, used to render the HTML index
// (spec.md §6 `GET /`, §9 "the core exposes the data ... through a
// read-only accessor").
func (r *Repo) ListNodes(ctx context.Context) ([]*types.Node, error) {
	var out []*types.Node
	err := r.kv.Range(ctx, store.TreeNodes, nil, func(k, v []byte) (bool, error) {
		var rec nodeRecord
		if err := decode(v, &rec); err != nil {
			return false, err
		}
		out = append(out, &types.Node{
			ListenerRef:      string(k),
			SoftwareName:     rec.SoftwareName,
			SoftwareVersion:  rec.SoftwareVersion,
			RegistrationOpen: rec.RegistrationOpen,
			Description:      rec.Description,
			Contact:          rec.Contact,
			UpdatedAt:        rec.UpdatedAt,
		})
		return true, nil
	})
	return out, wrapStoreErr(err)
}
