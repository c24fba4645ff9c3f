package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayBuffersUntilCommit(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("existing"), []byte("old")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("pending"), []byte("new")))
	require.NoError(t, overlay.Put([]byte("existing"), []byte("updated")))

	// Reads through the overlay observe pending writes.
	got, err := overlay.Get([]byte("pending"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
	got, err = overlay.Get([]byte("existing"))
	require.NoError(t, err)
	require.Equal(t, []byte("updated"), got)

	// The base is untouched before Commit.
	got, err = base.Get([]byte("pending"))
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = base.Get([]byte("existing"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)

	require.NoError(t, overlay.Commit())
	got, err = base.Get([]byte("pending"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
	got, err = base.Get([]byte("existing"))
	require.NoError(t, err)
	require.Equal(t, []byte("updated"), got)
}

func TestOverlayDeleteShadowsBase(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("doomed"), []byte("v")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Delete([]byte("doomed")))

	got, err := overlay.Get([]byte("doomed"))
	require.NoError(t, err)
	require.Nil(t, got)

	// A later Put revives the key.
	require.NoError(t, overlay.Put([]byte("doomed"), []byte("revived")))
	got, err = overlay.Get([]byte("doomed"))
	require.NoError(t, err)
	require.Equal(t, []byte("revived"), got)
}

func TestOverlayIterateMerges(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("p/a"), []byte("1")))
	require.NoError(t, base.Put([]byte("p/c"), []byte("3")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("p/b"), []byte("2")))
	require.NoError(t, overlay.Delete([]byte("p/c")))

	var keys []string
	require.NoError(t, overlay.Iterate([]byte("p/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"p/a", "p/b"}, keys)
}

func TestOverlayDiscardRollsBack(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("stable"), []byte("v")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("tmp"), []byte("x")))
	require.NoError(t, overlay.Delete([]byte("stable")))

	// Dropping the overlay without Commit leaves the base unchanged.
	overlay = nil
	_ = overlay

	got, err := base.Get([]byte("stable"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	got, err = base.Get([]byte("tmp"))
	require.NoError(t, err)
	require.Nil(t, got)
}
