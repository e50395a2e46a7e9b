// Package storetest holds the behaviour every store.StateStore must show
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cogwheel-Validator/spectra-lease/store"
)

// RunContract exercises s against the StateStore contract
func RunContract(t *testing.T, s store.StateStore) {
	ctx := context.Background()
	id := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		state := []byte(`{"phase":"opening","state":{"id":"x"}}`)
		require.NoError(t, s.Save(ctx, id, state))

		loaded, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, string(state), string(loaded))
	})

	t.Run("Save overwrites", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, id, []byte(`{"v":1}`)))
		require.NoError(t, s.Save(ctx, id, []byte(`{"v":2}`)))

		loaded, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(loaded))
	})

	t.Run("Load missing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing-"+id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, id, []byte(`{}`)))
		require.NoError(t, s.Delete(ctx, id))

		_, err := s.Load(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, id), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := id+"-1", id+"-2"
		require.NoError(t, s.Save(ctx, id1, []byte(`{}`)))
		require.NoError(t, s.Save(ctx, id2, []byte(`{}`)))
		defer func() {
			_ = s.Delete(ctx, id1)
			_ = s.Delete(ctx, id2)
		}()

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.NotContains(t, ids, id)
	})
}
