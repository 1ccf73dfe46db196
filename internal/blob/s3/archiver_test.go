package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

// memoryBlobs implements domain.BlobWriter and domain.BlobReader in memory.
type memoryBlobs struct {
	objects map[string][]byte
	puts    int
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: make(map[string][]byte)}
}

func (m *memoryBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	m.puts++
	return nil
}

func (m *memoryBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, contentTypeJSON)
}

func (m *memoryBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memoryBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for path, b := range m.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.BlobInfo{Path: path, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memoryBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type recordingAudit struct {
	events []string
}

func (a *recordingAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func settledBet(id uint64) *domain.Bet {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	alice := common.HexToAddress("0xa11c")
	return &domain.Bet{
		ID:                  id,
		Creator:             alice,
		Condition:           "BTC above 100k",
		CreatedAt:           at,
		Expiration:          at.Add(24 * time.Hour),
		CreatorPrediction:   true,
		Participants:        []domain.Participant{{Address: alice, Stake: big.NewInt(100), Prediction: true, JoinedAt: at}},
		TotalStakeTrue:      big.NewInt(100),
		TotalStakeFalse:     new(big.Int),
		Votes:               map[common.Address]bool{alice: true},
		Resolved:            true,
		WinningOutcome:      true,
		ResolutionFinalized: true,
	}
}

func TestArchiveBetSkipsExisting(t *testing.T) {
	blobs := newMemoryBlobs()
	audit := &recordingAudit{}
	a := NewArchiver(blobs, blobs, audit)
	ctx := context.Background()

	uploaded, err := a.ArchiveBet(ctx, BetArchive{Bet: settledBet(3)})
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Contains(t, blobs.objects, "bets/3.json")

	uploaded, err = a.ArchiveBet(ctx, BetArchive{Bet: settledBet(3)})
	require.NoError(t, err)
	assert.False(t, uploaded)
	assert.Equal(t, 1, blobs.puts)
	assert.Equal(t, []string{"archive.bet"}, audit.events)

	rec, err := a.LoadBet(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "BTC above 100k", rec.Bet.Condition)
	assert.Equal(t, int64(100), rec.Bet.TotalStakeTrue.Int64())
}

func TestLatestSnapshot(t *testing.T) {
	blobs := newMemoryBlobs()
	a := NewArchiver(blobs, blobs, nil)
	ctx := context.Background()

	_, err := a.LatestSnapshot(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	for i, counter := range []uint64{4, 9} {
		_, err := a.ArchiveSnapshot(ctx, &domain.Snapshot{
			BetCounter: counter,
			Bets:       []*domain.Bet{settledBet(counter)},
			TakenAt:    time.Unix(1_700_000_000+int64(i)*3600, 0),
		})
		require.NoError(t, err)
	}

	snap, err := a.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), snap.BetCounter)
	require.Len(t, snap.Bets, 1)
	assert.True(t, snap.Bets[0].Resolved)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "bets/12.json", betPath(12))
	assert.Equal(t, "snapshots/001700000000.json", snapshotPath(time.Unix(1_700_000_000, 0)))
	assert.Equal(t, "snapshots/2.json", latestSnapshotPath([]domain.BlobInfo{
		{Path: "snapshots/1.json"}, {Path: "snapshots/2.json"}, {Path: "snapshots/README"},
	}))
	assert.Equal(t, "https://minio.internal", normaliseEndpoint("minio.internal", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
}

func TestBetArchiveOmitsRawPayload(t *testing.T) {
	rec := BetArchive{
		Bet: settledBet(1),
		Events: []domain.StoredEvent{{
			ID:      7,
			Event:   domain.Event{Type: domain.EventBetResolved, BetID: 1, Data: json.RawMessage(`{"bet_id":1}`)},
			Payload: []byte(`{"bet_id":1}`),
		}},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "Payload")
	assert.Contains(t, string(b), `"data":{"bet_id":1}`)
}
