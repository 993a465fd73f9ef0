// Package export builds diagnostics bundles: a zip archive holding the raw
// cached records as JSONL streams plus a manifest, suitable for attaching to
// a support ticket or feeding back into cacheinspect.
package export

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"encoding/json/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

// FormatVersion is the bundle format version. Increment on breaking changes.
const FormatVersion = "1.0"

// Options configures bundle creation.
type Options struct {
	// IncludeTransactions adds the pending transaction log to the bundle.
	// Staged values can contain full record bodies, so this is opt-in.
	IncludeTransactions bool
	OutputPath          string
}

// EntityCounts tracks record counts for validation and progress reporting.
type EntityCounts struct {
	Videos       int `json:"videos"`
	Channels     int `json:"channels"`
	Transactions int `json:"transactions,omitempty"`
}

// Manifest describes bundle contents and metadata.
type Manifest struct {
	Version              string       `json:"version"`
	CreatedAt            time.Time    `json:"created_at"`
	Scope                string       `json:"scope"`
	EngineVersion        string       `json:"engine_version"`
	LastSync             time.Time    `json:"last_sync"`
	ChannelListChanged   bool         `json:"channel_list_changed"`
	Counts               EntityCounts `json:"counts"`
	IncludesTransactions bool         `json:"includes_transactions"`
}

// Result contains the outcome of an export operation.
type Result struct {
	Path     string
	Size     int64
	Counts   EntityCounts
	Duration time.Duration
	Checksum string
}

// Exporter creates diagnostics bundles from a live store.
type Exporter struct {
	kv      store.KV
	logger  *slog.Logger
	version string
}

// New creates an Exporter. The version string ends up in the manifest so
// support can tell which engine build produced a bundle.
func New(kv store.KV, version string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{kv: kv, logger: logger.With("component", "export"), version: version}
}

// Export writes a bundle for one scope. The archive is written to a temp
// file and renamed on success so a crash never leaves a half-written bundle
// at the target path.
func (e *Exporter) Export(ctx context.Context, scope domain.Scope, opts Options) (*Result, error) {
	start := time.Now()

	tmpPath := opts.OutputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create bundle file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := &Manifest{
		Version:              FormatVersion,
		CreatedAt:            time.Now().UTC(),
		Scope:                scope.String(),
		EngineVersion:        e.version,
		IncludesTransactions: opts.IncludeTransactions,
	}
	e.readSyncState(ctx, scope, manifest)

	counts := &manifest.Counts
	if counts.Videos, err = exportRecords[domain.VideoRecord](ctx, e.kv, zw, "videos.jsonl", store.VideoScopePrefix(scope)); err != nil {
		return nil, fmt.Errorf("export videos: %w", err)
	}
	if counts.Channels, err = exportRecords[domain.ChannelRecord](ctx, e.kv, zw, "channels.jsonl", store.ChannelScopePrefix(scope)); err != nil {
		return nil, fmt.Errorf("export channels: %w", err)
	}
	if opts.IncludeTransactions {
		if counts.Transactions, err = exportRecords[txn.LogEntry](ctx, e.kv, zw, "transactions.jsonl", store.TxLogPrefix()); err != nil {
			return nil, fmt.Errorf("export transactions: %w", err)
		}
	}

	// Manifest goes last so it carries final counts.
	if err := writeManifest(zw, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, opts.OutputPath); err != nil {
		return nil, fmt.Errorf("rename bundle: %w", err)
	}

	info, err := os.Stat(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("stat bundle: %w", err)
	}

	result := &Result{
		Path:     opts.OutputPath,
		Size:     info.Size(),
		Counts:   *counts,
		Duration: time.Since(start),
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}
	e.logger.Info("diagnostics bundle written",
		"path", result.Path,
		"videos", counts.Videos,
		"channels", counts.Channels,
		"size_bytes", result.Size)
	return result, nil
}

func (e *Exporter) readSyncState(ctx context.Context, scope domain.Scope, m *Manifest) {
	if raw, err := e.kv.Get(ctx, store.LastSyncKey(scope)); err == nil {
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err == nil {
			m.LastSync = ts
		}
	}
	if _, err := e.kv.Get(ctx, store.ChannelChangedKey(scope)); err == nil {
		m.ChannelListChanged = true
	}
}

// exportRecords streams every value under a prefix into a JSONL file in the
// archive. Values that fail to decode are written as-is under a .corrupt
// sidecar line marker rather than aborting the export; a support bundle of
// a damaged cache is exactly when the damaged bytes matter.
func exportRecords[T any](ctx context.Context, kv store.KV, zw *zip.Writer, path, prefix string) (int, error) {
	keys, err := kv.ListKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	w, err := NewWriter(zw, path)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return w.Count(), ctx.Err()
		}
		raw, err := kv.Get(ctx, key)
		if err != nil {
			if store.IsNotFound(err) {
				continue
			}
			return w.Count(), err
		}

		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			if werr := w.WriteCorrupt(key, raw); werr != nil {
				return w.Count(), werr
			}
			continue
		}
		if err := w.Write(record); err != nil {
			return w.Count(), err
		}
	}
	return w.Count(), nil
}

func writeManifest(zw *zip.Writer, m *Manifest) error {
	w, err := zw.Create("manifest.json")
	if err != nil {
		return err
	}
	return json.MarshalWrite(w, m)
}

// ReadManifest opens a bundle and returns its manifest.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer zr.Close()

	rc, err := OpenFile(&zr.Reader, "manifest.json")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.UnmarshalRead(rc, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
