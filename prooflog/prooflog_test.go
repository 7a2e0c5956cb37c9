package prooflog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberia-to/universal-hash/miner"
	"github.com/cyberia-to/universal-hash/types"
)

func TestStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state", "proofs.db"))
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	seed := types.Hash{0x01}
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, store.Append("alice", miner.Proof{
			Hash:        types.Hash{byte(i)},
			Nonce:       i * 100,
			Timestamp:   1700000000 + i,
			HashesTried: i * 7,
			ElapsedNs:   i * 1000,
			Seed:        seed,
		}))
	}

	n, err = store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	recent, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// newest first
	assert.EqualValues(t, 300, recent[0].Nonce)
	assert.EqualValues(t, 200, recent[1].Nonce)
	assert.Equal(t, "alice", recent[0].Address)
	assert.Equal(t, seed, recent[0].Seed)
	assert.Equal(t, types.Hash{0x03}, recent[0].Hash)
	assert.EqualValues(t, 21, recent[0].HashesTried)
	assert.NotZero(t, recent[0].CreatedUnix)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
