// Package main provides a tool to seed the cache with fixture data.
//
// It writes a realistic set of channels and video summaries so UI work does
// not need a live backend or a real YouTube account.
//
// Usage:
//
//	CB_DATA_PATH=~/.channelbrief go run ./cmd/seed
//	CB_DATA_PATH=~/.channelbrief go run ./cmd/seed --user 42 --videos 80
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/channelbriefapp/channelbrief-engine/internal/cache"
	"github.com/channelbriefapp/channelbrief-engine/internal/domain"
	"github.com/channelbriefapp/channelbrief-engine/internal/id"
	"github.com/channelbriefapp/channelbrief-engine/internal/store"
	"github.com/channelbriefapp/channelbrief-engine/internal/txn"
)

var (
	userID     = flag.String("user", "42", "User ID to seed the cache for")
	videoCount = flag.Int("videos", 60, "Number of video summaries to create")
	reset      = flag.Bool("reset", false, "Wipe all cached data before seeding")
)

// seedChannels are fixture channels spanning typical subscription mixes.
var seedChannels = []domain.ChannelRecord{
	{ChannelID: "UCseed-making", Title: "Making Things Weekly", SubscriberCount: 412000},
	{ChannelID: "UCseed-history", Title: "History Uncovered", SubscriberCount: 1250000},
	{ChannelID: "UCseed-cooking", Title: "Midnight Kitchen", SubscriberCount: 88000},
	{ChannelID: "UCseed-space", Title: "Orbital Mechanics", SubscriberCount: 2100000},
	{ChannelID: "UCseed-music", Title: "Theory and Practice", SubscriberCount: 340000},
}

// summaryTemplates keep seeded summaries varied enough to exercise search.
var summaryTemplates = []string{
	"The episode opens with a recap of last week before moving into %s. The host walks through the main argument step by step and closes with viewer questions.",
	"A deep dive on %s. Three experts weigh in with differing takes, and the second half compares their predictions against what actually happened.",
	"Short update covering %s, followed by a longer segment on upcoming projects and a correction to a claim from the previous video.",
	"Field recording from a visit related to %s. Mostly unscripted, with the usual equipment talk at the end.",
}

var topics = []string{
	"a new fabrication technique", "the fall of a trading empire", "fermentation basics",
	"orbital rendezvous planning", "modal interchange", "restoring an old lathe",
	"naval logistics", "sourdough troubleshooting", "launch window math", "voice leading",
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("CB_DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.channelbrief")
	}

	fmt.Printf("Opening store at: %s\n", dataPath)

	kv, err := store.OpenBadger(filepath.Join(dataPath, "db"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer kv.Close()

	logger := slog.New(slog.DiscardHandler)
	repo := cache.NewRepository(kv, txn.NewManager(kv, logger), cache.RetentionPolicy{}, logger, store.NewNoopEmitter())

	ctx := context.Background()
	scope := domain.Scope(*userID)

	if *reset {
		if err := repo.ClearAll(ctx); err != nil {
			log.Fatalf("Failed to reset cache: %v", err)
		}
		fmt.Println("Cleared existing cache")
	}

	// Claiming the scope up front keeps the engine from treating the seeded
	// data as another user's cache on first sync.
	if _, err := repo.CheckUserChanged(ctx, scope); err != nil {
		log.Fatalf("Failed to claim scope: %v", err)
	}

	if err := repo.SaveChannels(ctx, scope, seedChannels); err != nil {
		log.Fatalf("Failed to save channels: %v", err)
	}
	fmt.Printf("Created %d channels\n", len(seedChannels))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	videos := make([]domain.VideoRecord, 0, *videoCount)
	for i := range *videoCount {
		channel := seedChannels[rng.Intn(len(seedChannels))]
		topic := topics[rng.Intn(len(topics))]

		// Spread uploads over the past 30 days, newest last so IDs do not
		// correlate with recency.
		age := time.Duration(rng.Intn(30*24)) * time.Hour
		createdAt := now.Add(-age)

		status := domain.StatusDone
		processed := true
		summary := fmt.Sprintf(summaryTemplates[rng.Intn(len(summaryTemplates))], topic)
		if rng.Float32() < 0.15 {
			// A slice of pending videos exercises the processing states in the UI.
			status = domain.StatusPending
			processed = false
			summary = ""
		}

		videos = append(videos, domain.VideoRecord{
			VideoID:     id.MustGenerate("vid"),
			ChannelID:   channel.ChannelID,
			Title:       fmt.Sprintf("%s #%d: %s", channel.Title, i+1, topic),
			PublishedAt: createdAt.Add(-time.Duration(rng.Intn(48)) * time.Hour),
			CreatedAt:   createdAt,
			Processed:   processed,
			Summary:     summary,
			Status:      status,
		})
	}

	if err := repo.SaveVideos(ctx, scope, videos); err != nil {
		log.Fatalf("Failed to save videos: %v", err)
	}
	fmt.Printf("Created %d videos\n", len(videos))

	if err := repo.SetLastSyncAt(ctx, scope, now); err != nil {
		log.Fatalf("Failed to set last sync: %v", err)
	}

	fmt.Println("\nSeeding complete!")
}
