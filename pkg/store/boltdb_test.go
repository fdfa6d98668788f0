package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestKV(t *testing.T) *BoltKV {
	t.Helper()
	kv, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestPutGetDelete(t *testing.T) {
	kv := openTestKV(t)

	_, ok, err := kv.Get(TreeSettings, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(TreeSettings, []byte("k"), []byte("v1")))
	v, ok, err := kv.Get(TreeSettings, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, kv.Delete(TreeSettings, []byte("k")))
	_, ok, err = kv.Get(TreeSettings, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRangePrefix(t *testing.T) {
	kv := openTestKV(t)
	require.NoError(t, kv.Put(TreeBlocks, []byte("bad.example"), nil))
	require.NoError(t, kv.Put(TreeBlocks, []byte("badder.example"), nil))
	require.NoError(t, kv.Put(TreeBlocks, []byte("good.example"), nil))

	var keys []string
	err := kv.Range(context.Background(), TreeBlocks, []byte("bad"), func(k, v []byte) (bool, error) {
		keys = append(keys, string(k))
		return true, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bad.example", "badder.example"}, keys)
}

func TestRangeStopsEarly(t *testing.T) {
	kv := openTestKV(t)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, kv.Put(TreeBlocks, []byte(k), nil))
	}

	var seen int
	err := kv.Range(context.Background(), TreeBlocks, nil, func(k, v []byte) (bool, error) {
		seen++
		return seen < 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

func TestCASAppliesOnMatch(t *testing.T) {
	kv := openTestKV(t)

	applied, current, err := kv.CAS(TreeSettings, []byte("restricted_mode_runtime"), nil, []byte("true"))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "true", string(current))

	applied, current, err = kv.CAS(TreeSettings, []byte("restricted_mode_runtime"), []byte("wrong"), []byte("false"))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "true", string(current))

	applied, _, err = kv.CAS(TreeSettings, []byte("restricted_mode_runtime"), []byte("true"), []byte("false"))
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestCASDeleteOnNilNewValue(t *testing.T) {
	kv := openTestKV(t)
	require.NoError(t, kv.Put(TreeSettings, []byte("k"), []byte("v")))

	applied, current, err := kv.CAS(TreeSettings, []byte("k"), []byte("v"), nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Nil(t, current)

	_, ok, err := kv.Get(TreeSettings, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}
