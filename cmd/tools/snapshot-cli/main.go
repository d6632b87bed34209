package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/annel0/entity-renderer/internal/scenegen"
	"github.com/annel0/entity-renderer/internal/storage"
)

func main() {
	var (
		command  = flag.String("cmd", "inspect", "Command: generate, seed, inspect")
		dataPath = flag.String("data", "./data", "Snapshot data directory")
		scene    = flag.String("scene", "", "Scene YAML file (seed input, generate output; generate prints to stdout if empty)")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Generator seed")
		size     = flag.Float64("size", 64, "Generated area side, meters")
		zones    = flag.Int("zones", 3, "Nested zones around the center")
		script   = flag.String("script", "", "Script URL for a share of generated boxes")
	)
	flag.Parse()

	switch *command {
	case "generate":
		opts := scenegen.DefaultOptions(*seed)
		opts.Size = *size
		opts.Zones = *zones
		opts.ScriptURL = *script
		if err := generate(opts, *scene); err != nil {
			log.Fatalf("❌ Generate failed: %v", err)
		}

	case "seed":
		if *scene == "" {
			log.Fatalf("❌ -scene is required for seed")
		}
		n, err := seedStore(*dataPath, *scene)
		if err != nil {
			log.Fatalf("❌ Seed failed: %v", err)
		}
		fmt.Printf("✅ Seeded %d entities into %s\n", n, *dataPath)

	case "inspect":
		store, err := storage.NewSnapshotStore(*dataPath)
		if err != nil {
			log.Fatalf("❌ Failed to open snapshot: %v", err)
		}
		defer store.Close()
		if err := inspect(store, os.Stdout); err != nil {
			log.Fatalf("❌ Inspect failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: generate, seed, inspect")
		os.Exit(1)
	}
}

// generate пишет процедурную сцену в файл или stdout
func generate(opts scenegen.Options, out string) error {
	s := scenegen.Generate(opts)
	if out == "" {
		return s.Encode(os.Stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.Encode(f); err != nil {
		return err
	}
	fmt.Printf("🗺️ Scene %q: %d entities → %s\n", s.Name, len(s.Entities), out)
	return nil
}

// seedStore заменяет сущности снапшота содержимым сцены
func seedStore(dataPath, scenePath string) (int, error) {
	s, err := scenegen.Load(scenePath)
	if err != nil {
		return 0, err
	}
	records, err := sceneRecords(s, time.Now())
	if err != nil {
		return 0, err
	}

	store, err := storage.NewSnapshotStore(dataPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.ReplaceEntities(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func sceneRecords(s *scenegen.Scene, now time.Time) ([]storage.EntityRecord, error) {
	resolved, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	records := make([]storage.EntityRecord, 0, len(resolved))
	for _, e := range resolved {
		records = append(records, storage.EntityRecord{ID: e.ID, Properties: e.Properties, SavedAt: now.UTC()})
	}
	return records, nil
}

// inspect выводит сущности снапшота, сгруппированные по типу
func inspect(store *storage.SnapshotStore, w io.Writer) error {
	records, err := store.LoadEntities()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "📦 Snapshot %s: %d entities\n", store.Path(), len(records))

	byType := make(map[string]int)
	for _, rec := range records {
		byType[rec.Properties.Type.String()]++
		fmt.Fprintf(w, "  %s %-6s %-20q pos=%v dims=%v\n",
			rec.ID, rec.Properties.Type, rec.Properties.Name, rec.Properties.Position, rec.Properties.Dimensions)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintln(w, "\nBy type:")
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, byType[t])
	}
	return nil
}
