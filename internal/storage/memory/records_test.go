package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/adminchat/internal/storage"
)

func TestRecordStore_GetMissing(t *testing.T) {
	s := NewRecordStore()

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_SetThenGet(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	require.NoError(t, s.Set(ctx, storage.ConversationsKey, []byte(`[]`)))

	got, err := s.Get(ctx, storage.ConversationsKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)
	assert.ElementsMatch(t, []string{storage.ConversationsKey}, s.Keys())
}

func TestRecordStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	require.NoError(t, s.Set(ctx, "k", []byte("first")))
	require.NoError(t, s.Set(ctx, "k", []byte("second")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestRecordStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
