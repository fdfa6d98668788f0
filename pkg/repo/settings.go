package repo

import (
	"github.com/cuemby/relay/pkg/store"
)

const schemaVersionKey = "schema_version"

// GetSetting returns the raw value stored for key.
func (r *Repo) GetSetting(key string) (string, bool, error) {
	val, ok, err := r.kv.Get(store.TreeSettings, []byte(key))
	if err != nil {
		return "", false, wrapStoreErr(err)
	}
	return string(val), ok, nil
}

// SetSetting unconditionally overwrites key's value.
func (r *Repo) SetSetting(key, value string) error {
	return wrapStoreErr(r.kv.Put(store.TreeSettings, []byte(key), []byte(value)))
}

// CASSetting compares-and-swaps a setting. expected/newValue nil means
// "key absent"/"delete key", matching store.KV.CAS.
func (r *Repo) CASSetting(key string, expected, newValue []byte) (applied bool, current []byte, err error) {
	applied, current, err = r.kv.CAS(store.TreeSettings, []byte(key), expected, newValue)
	return applied, current, wrapStoreErr(err)
}

// GetOrCreateSetting returns the current value of key, generating and
// persisting one via create if absent. Concurrent callers racing to
// bootstrap the same setting (e.g. the relay's private key, spec.md data
// model "Private key": "exactly one key exists for the lifetime of the
// data directory") coalesce onto whichever write wins the CAS; losers
// simply read back the winner's value.
func (r *Repo) GetOrCreateSetting(key string, create func() (string, error)) (string, error) {
	if val, ok, err := r.GetSetting(key); err != nil {
		return "", err
	} else if ok {
		return val, nil
	}

	generated, err := create()
	if err != nil {
		return "", err
	}

	applied, current, err := r.CASSetting(key, nil, []byte(generated))
	if err != nil {
		return "", err
	}
	if applied {
		return generated, nil
	}
	return string(current), nil
}

// GetSchemaVersion returns the persisted schema version, or "" if this is a
// freshly created data directory.
func (r *Repo) GetSchemaVersion() (string, bool, error) {
	return r.GetSetting(schemaVersionKey)
}

// SetSchemaVersion stamps the data directory with the current schema
// version. Startup refuses to run against an incompatible version
// (spec.md §6).
func (r *Repo) SetSchemaVersion(version string) error {
	return r.SetSetting(schemaVersionKey, version)
}
