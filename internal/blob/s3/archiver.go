package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/visioninhope/BetM3/internal/domain"
)

const contentTypeJSON = "application/json"

// BetArchive is the exported record of a settled bet.
type BetArchive struct {
	Bet        *domain.Bet          `json:"bet"`
	Details    domain.BetDetails    `json:"details"`
	Events     []domain.StoredEvent `json:"events"`
	ArchivedAt time.Time            `json:"archived_at"`
}

// Archiver writes settled bets and registry snapshots to object storage:
//
//	bets/<id>.json
//	snapshots/<unix>.json
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, audit: audit}
}

// ArchiveBet uploads rec unless an archive for the bet already exists. It
// reports whether an upload happened.
func (a *Archiver) ArchiveBet(ctx context.Context, rec BetArchive) (bool, error) {
	path := betPath(rec.Bet.ID)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("s3blob: archive bet %d: %w", rec.Bet.ID, err)
	}
	if exists {
		return false, nil
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("s3blob: archive bet %d marshal: %w", rec.Bet.ID, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSON); err != nil {
		return false, fmt.Errorf("s3blob: archive bet %d upload: %w", rec.Bet.ID, err)
	}

	a.logAudit(ctx, "archive.bet", map[string]any{"path": path, "bet_id": rec.Bet.ID})
	return true, nil
}

// ArchiveSnapshot streams the full registry state through a multipart
// upload and returns the object path.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error) {
	path := snapshotPath(snap.TakenAt)

	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		enc.SetEscapeHTML(false)
		pw.CloseWithError(enc.Encode(snap))
	}()

	if err := a.writer.PutMultipart(ctx, path, pr, minPartSize); err != nil {
		_ = pr.CloseWithError(err)
		return "", fmt.Errorf("s3blob: archive snapshot: %w", err)
	}

	a.logAudit(ctx, "archive.snapshot", map[string]any{
		"path":        path,
		"bet_counter": snap.BetCounter,
		"bets":        len(snap.Bets),
	})
	return path, nil
}

// LoadBet reads back an archived bet.
func (a *Archiver) LoadBet(ctx context.Context, betID uint64) (*BetArchive, error) {
	var rec BetArchive
	if err := a.readJSON(ctx, betPath(betID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestSnapshot reads the most recent snapshot. It returns
// domain.ErrNotFound when none has been written.
func (a *Archiver) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	infos, err := a.reader.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list snapshots: %w", err)
	}
	latest := latestSnapshotPath(infos)
	if latest == "" {
		return nil, domain.ErrNotFound
	}

	var snap domain.Snapshot
	if err := a.readJSON(ctx, latest, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *Archiver) readJSON(ctx context.Context, path string, v any) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("s3blob: decode %s: %w", path, err)
	}
	return nil
}

func (a *Archiver) logAudit(ctx context.Context, event string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	// Audit failures do not fail the archive write.
	_ = a.audit.Log(ctx, event, detail)
}

const (
	betPrefix      = "bets/"
	snapshotPrefix = "snapshots/"
)

func betPath(id uint64) string {
	return fmt.Sprintf("%s%d.json", betPrefix, id)
}

// snapshotPath zero-pads the unix time so lexical order is chronological.
func snapshotPath(at time.Time) string {
	return fmt.Sprintf("%s%012d.json", snapshotPrefix, at.Unix())
}

func latestSnapshotPath(infos []domain.BlobInfo) string {
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".json") {
			paths = append(paths, info.Path)
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return ""
	}
	return paths[len(paths)-1]
}
