package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/entity-renderer/internal/eventbus"
	sig "github.com/annel0/entity-renderer/internal/signal"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
	idleTimeout    = 2 * time.Second
)

func main() {
	var (
		natsURL = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream  = flag.String("stream", "RENDERER_EVENTS", "JetStream stream name")
		command = flag.String("cmd", "tail", "Command: tail, stats, types")
		names   = flag.String("names", "", "Signal names filter (comma-separated)")
		source  = flag.String("source", "", "Source filter (viewer:<session>)")
		since   = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit   = flag.Int("limit", 100, "Maximum number of signals")
		follow  = flag.Bool("follow", false, "Follow new signals (like tail -f)")
	)
	flag.Parse()

	if *command == "types" {
		showTypes()
		return
	}

	start, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since time: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	zstd, err := eventbus.NewZstdCodec()
	if err != nil {
		log.Fatalf("❌ Failed to init zstd: %v", err)
	}
	defer zstd.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := &ReadOptions{
		Names:  toNames(parseStringList(*names)),
		Source: *source,
		Since:  start,
		Limit:  *limit,
		Follow: *follow,
	}

	switch *command {
	case "tail":
		fmt.Printf("🎬 Tailing signals since %s (limit: %d, follow: %v)\n", start.Format(timeFormat), *limit, *follow)
		n, err := readSignals(ctx, bus, zstd, opts, printRecord)
		if err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
		fmt.Printf("\n📊 Total signals: %d\n", n)

	case "stats":
		opts.Follow = false
		opts.Limit = 0
		stats := NewStats()
		if _, err := readSignals(ctx, bus, zstd, opts, stats.Add); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
		fmt.Println("📊 Signal statistics")
		fmt.Printf("Period: %s - %s\n", start.Format(timeFormat), time.Now().UTC().Format(timeFormat))
		stats.Print(os.Stdout)

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
}

// ReadOptions параметры чтения сигналов из стрима
type ReadOptions struct {
	Names  []sig.Name
	Source string
	Since  time.Time
	Limit  int // 0 без ограничения
	Follow bool
}

// readSignals читает сигналы из стрима. Без Follow останавливается на лимите
// или когда стрим молчит дольше idleTimeout.
func readSignals(ctx context.Context, bus *eventbus.JetStreamBus, codec eventbus.Codec, opts *ReadOptions, fn func(eventbus.SignalRecord)) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan eventbus.SignalRecord, 256)
	filter := eventbus.Filter{Types: []string{eventbus.SignalBatchType}}
	if opts.Source != "" {
		filter.Sources = []string{opts.Source}
	}

	handler := eventbus.SignalHandler(func(rec eventbus.SignalRecord) {
		if !wanted(rec, opts.Names) {
			return
		}
		select {
		case records <- rec:
		case <-ctx.Done():
		}
	}, codec)

	sub, err := bus.SubscribeSince(ctx, filter, opts.Since, handler)
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	count := 0
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return count, nil
		case <-idle.C:
			if !opts.Follow {
				return count, nil
			}
			idle.Reset(idleTimeout)
		case rec := <-records:
			fn(rec)
			count++
			if opts.Limit > 0 && count >= opts.Limit && !opts.Follow {
				return count, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
		}
	}
}

func wanted(rec eventbus.SignalRecord, names []sig.Name) bool {
	return len(names) == 0 || slices.Contains(names, rec.Event.Name)
}

// printRecord выводит сигнал в читаемом формате
func printRecord(rec eventbus.SignalRecord) {
	fmt.Println(formatRecord(rec))
}

func formatRecord(rec eventbus.SignalRecord) string {
	ev := rec.Event
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", rec.At.Format("15:04:05.000"), ev.Name, ev.EntityID)
	if ev.Pointer != nil {
		fmt.Fprintf(&b, "\n  Pointer: (%.0f,%.0f) button=%v", ev.Pointer.Pos2D.X(), ev.Pointer.Pos2D.Y(), ev.Pointer.Button)
	}
	if ev.Collision != nil {
		fmt.Fprintf(&b, "\n  Collision with: %s", ev.OtherID)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, "\n  Message: %s", ev.Message)
	}
	return b.String()
}

// showTypes выводит известные имена сигналов
func showTypes() {
	fmt.Println("📋 Available signal types")
	for _, n := range sig.AllNames {
		fmt.Printf("  %s (priority %d)\n", n, eventbus.SignalPriority(n))
	}
}

func toNames(list []string) []sig.Name {
	if len(list) == 0 {
		return nil
	}
	out := make([]sig.Name, len(list))
	for i, s := range list {
		out[i] = sig.Name(s)
	}
	return out
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
