package storage

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSnapshot(takenAt time.Time) interfaces.Snapshot {
	owner := common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	endDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	return interfaces.Snapshot{
		TakenAt: takenAt,
		Locks: []interfaces.NameLock{{
			NameHash: interfaces.NameHash("dhruv"),
			Owner:    owner,
			Escrow:   big.NewInt(5),
			EndDate:  endDate,
		}},
		Events: []interfaces.Event{{
			Seq:     1,
			Kind:    interfaces.EventRegistered,
			Name:    "dhruv",
			Amount:  big.NewInt(5),
			Address: owner,
			Time:    endDate.Add(-30 * 24 * time.Hour),
		}},
		Balances: map[interfaces.Address]*big.Int{owner: big.NewInt(95)},
	}
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	store := NewSnapshotStore(backend, logger)

	_, ok := store.Latest()
	assert.False(t, ok)

	snap := testSnapshot(time.Now())
	id, err := store.Save(context.Background(), snap)
	require.NoError(t, err)

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, id, latest)

	loaded, err := store.Load(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, loaded.Locks, 1)
	assert.Equal(t, snap.Locks[0].Owner, loaded.Locks[0].Owner)
	assert.Equal(t, 0, snap.Locks[0].Escrow.Cmp(loaded.Locks[0].Escrow))
	assert.True(t, snap.Locks[0].EndDate.Equal(loaded.Locks[0].EndDate))
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, interfaces.EventRegistered, loaded.Events[0].Kind)
	owner := snap.Locks[0].Owner
	assert.Equal(t, 0, big.NewInt(95).Cmp(loaded.Balances[owner]))
}

func TestSnapshotStore_SameStateSameID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &MockStorageBackend{name: "mock-A"}
	backend.On("Store", mock.Anything, mock.Anything, interfaces.SnapshotType).
		Return(func(ctx context.Context, data []byte, ct interfaces.ContentType) interfaces.ContentID {
			return interfaces.ComputeID(data)
		}, nil).Once()
	store := NewSnapshotStore(backend, logger)

	first, err := store.Save(context.Background(), testSnapshot(time.Unix(100, 0)))
	require.NoError(t, err)

	// Only the capture time differs, so nothing new is written
	second, err := store.Save(context.Background(), testSnapshot(time.Unix(200, 0)))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	backend.AssertExpectations(t)
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	store := NewSnapshotStore(backend, logger)

	_, err = store.Load(context.Background(), interfaces.ComputeID([]byte("nope")))
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestSnapshotStore_LoadCorrupted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	id := interfaces.ComputeID([]byte("expected"))

	backend := &MockStorageBackend{name: "mock-A"}
	backend.On("Fetch", mock.Anything, id, interfaces.SnapshotType).Return([]byte("tampered"), nil)
	store := NewSnapshotStore(backend, logger)

	_, err := store.Load(context.Background(), id)
	assert.ErrorContains(t, err, "integrity")
}
