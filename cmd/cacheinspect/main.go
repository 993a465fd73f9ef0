// Package main provides a tool to inspect a cache store on disk.
//
// It prints per-scope record counts and sync state, and can export a
// diagnostics bundle for a support ticket.
//
// Usage:
//
//	CB_DATA_PATH=~/.channelbrief go run ./cmd/cacheinspect
//	CB_DATA_PATH=~/.channelbrief go run ./cmd/cacheinspect --export bundle.zip
//	go run ./cmd/cacheinspect --manifest bundle.zip
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"encoding/json/v2"

	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/export"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/store/sqlite"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

var (
	exportPath       = flag.String("export", "", "Write a diagnostics bundle to this path")
	manifestPath     = flag.String("manifest", "", "Print the manifest of an existing bundle and exit")
	withTransactions = flag.Bool("with-transactions", false, "Include the pending transaction log in the bundle")
)

func main() {
	flag.Parse()

	if *manifestPath != "" {
		printManifest(*manifestPath)
		return
	}

	dataPath := os.Getenv("CB_DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.channelbrief")
	}

	kv, err := openStore(dataPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer kv.Close()

	ctx := context.Background()

	owner := readOwner(ctx, kv)
	fmt.Println("=== Cache Inspection ===")
	fmt.Printf("Data path: %s\n", dataPath)
	if owner == "" {
		fmt.Println("No cache owner recorded; store is empty or never synced")
		return
	}
	fmt.Printf("Owner scope: %s\n", owner)
	fmt.Println()

	scope := domain.Scope(owner)
	inspectScope(ctx, kv, scope)

	if *exportPath != "" {
		exportBundle(ctx, kv, scope)
	}
}

func openStore(dataPath string) (store.KV, error) {
	if os.Getenv("CB_STORE_BACKEND") == "sqlite" {
		return sqlite.Open(filepath.Join(dataPath, "cache.db"), nil)
	}
	return store.OpenBadger(filepath.Join(dataPath, "db"), nil)
}

func readOwner(ctx context.Context, kv store.KV) string {
	raw, err := kv.Get(ctx, store.LastUserKey)
	if err != nil {
		return ""
	}
	return string(raw)
}

func inspectScope(ctx context.Context, kv store.KV, scope domain.Scope) {
	videoKeys, err := kv.ListKeys(ctx, store.VideoScopePrefix(scope))
	if err != nil {
		log.Fatalf("Failed to list videos: %v", err)
	}
	channelKeys, err := kv.ListKeys(ctx, store.ChannelScopePrefix(scope))
	if err != nil {
		log.Fatalf("Failed to list channels: %v", err)
	}
	txKeys, err := kv.ListKeys(ctx, store.TxLogPrefix())
	if err != nil {
		log.Fatalf("Failed to list transactions: %v", err)
	}

	processed := 0
	undecodable := 0
	var oldest, newest time.Time
	for _, key := range videoKeys {
		raw, err := kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var video domain.VideoRecord
		if err := json.Unmarshal(raw, &video); err != nil {
			undecodable++
			continue
		}
		if video.Processed {
			processed++
		}
		if oldest.IsZero() || video.CreatedAt.Before(oldest) {
			oldest = video.CreatedAt
		}
		if video.CreatedAt.After(newest) {
			newest = video.CreatedAt
		}
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Videos: %d (%d processed, %d undecodable)\n", len(videoKeys), processed, undecodable)
	fmt.Printf("Channels: %d\n", len(channelKeys))
	fmt.Printf("Pending transactions: %d\n", len(txKeys))
	if !oldest.IsZero() {
		fmt.Printf("Oldest video: %s\n", oldest.Format(time.RFC3339))
		fmt.Printf("Newest video: %s\n", newest.Format(time.RFC3339))
	}

	if raw, err := kv.Get(ctx, store.LastSyncKey(scope)); err == nil {
		var lastSync time.Time
		if err := json.Unmarshal(raw, &lastSync); err == nil {
			fmt.Printf("Last sync: %s\n", lastSync.Format(time.RFC3339))
		}
	} else {
		fmt.Println("Last sync: never")
	}

	if _, err := kv.Get(ctx, store.ChannelChangedKey(scope)); err == nil {
		fmt.Println("Channel-change flag: SET (next sync will be full)")
	}

	for _, key := range txKeys {
		raw, err := kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var entry txn.LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			fmt.Printf("  Transaction %s: undecodable\n", key)
			continue
		}
		fmt.Printf("  Transaction %s: %s, %d keys, started %s\n",
			entry.TransactionID, entry.Kind, len(entry.Ops),
			entry.StartedAt.Format(time.RFC3339))
	}
}

func exportBundle(ctx context.Context, kv store.KV, scope domain.Scope) {
	exporter := export.New(kv, "cacheinspect", nil)
	result, err := exporter.Export(ctx, scope, export.Options{
		OutputPath:          *exportPath,
		IncludeTransactions: *withTransactions,
	})
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Bundle ===")
	fmt.Printf("Path: %s\n", result.Path)
	fmt.Printf("Size: %d bytes\n", result.Size)
	fmt.Printf("SHA-256: %s\n", result.Checksum)
	fmt.Printf("Records: %d videos, %d channels, %d transactions\n",
		result.Counts.Videos, result.Counts.Channels, result.Counts.Transactions)
}

func printManifest(path string) {
	manifest, err := export.ReadManifest(path)
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}

	fmt.Println("=== Bundle Manifest ===")
	fmt.Printf("Format version: %s\n", manifest.Version)
	fmt.Printf("Created: %s\n", manifest.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Scope: %s\n", manifest.Scope)
	fmt.Printf("Engine version: %s\n", manifest.EngineVersion)
	if !manifest.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", manifest.LastSync.Format(time.RFC3339))
	}
	fmt.Printf("Channel-change flag: %v\n", manifest.ChannelListChanged)
	fmt.Printf("Records: %d videos, %d channels, %d transactions\n",
		manifest.Counts.Videos, manifest.Counts.Channels, manifest.Counts.Transactions)
}
