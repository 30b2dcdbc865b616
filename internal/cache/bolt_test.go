package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, max int) *BoltCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "charts.db"), max)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyDependsOnDatasetAndRequest(t *testing.T) {
	req := []byte(`{"kind":"bar"}`)
	assert.Equal(t, Key(1, req), Key(1, req))
	assert.NotEqual(t, Key(1, req), Key(2, req))
	assert.NotEqual(t, Key(1, req), Key(1, []byte(`{"kind":"line"}`)))

	small, large := []byte(`{"width":400}`), []byte(`{"width":1000}`)
	assert.NotEqual(t, Key(1, small, req), Key(1, large, req))
	assert.NotEqual(t, Key(1, []byte("ab"), []byte("c")), Key(1, []byte("a"), []byte("bc")), "parts are delimited")
}

func TestPutGet(t *testing.T) {
	c := openTest(t, 10)

	_, ok, err := c.Get(7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(7, []byte("png-bytes")))
	got, ok, err := c.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), got)

	require.NoError(t, c.Put(7, []byte("newer")))
	got, _, _ = c.Get(7)
	assert.Equal(t, []byte("newer"), got)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsOldest(t *testing.T) {
	c := openTest(t, 3)
	for k := uint64(1); k <= 5; k++ {
		require.NoError(t, c.Put(k, []byte{byte(k)}))
	}
	assert.Equal(t, 3, c.Len())

	for k := uint64(1); k <= 2; k++ {
		_, ok, err := c.Get(k)
		require.NoError(t, err)
		assert.False(t, ok, "key %d should be evicted", k)
	}
	for k := uint64(3); k <= 5; k++ {
		_, ok, _ := c.Get(k)
		assert.True(t, ok, "key %d should remain", k)
	}
}

func TestClearAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.db")
	c, err := Open(path, 10)
	require.NoError(t, err)
	require.NoError(t, c.Put(1, []byte("a")))
	require.NoError(t, c.Close())

	c, err = Open(path, 10)
	require.NoError(t, err)
	defer c.Close()
	_, ok, _ := c.Get(1)
	assert.True(t, ok, "entries survive reopen")

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
}
