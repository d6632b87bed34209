package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/eventbus"
	sig "github.com/annel0/entity-renderer/internal/signal"
)

// Stats счётчики сигналов по имени и сущности
type Stats struct {
	Total    int
	ByName   map[sig.Name]int
	Entities map[entity.ID]struct{}
	First    time.Time
	Last     time.Time
}

func NewStats() *Stats {
	return &Stats{
		ByName:   make(map[sig.Name]int),
		Entities: make(map[entity.ID]struct{}),
	}
}

func (s *Stats) Add(rec eventbus.SignalRecord) {
	s.Total++
	s.ByName[rec.Event.Name]++
	s.Entities[rec.Event.EntityID] = struct{}{}
	if s.First.IsZero() || rec.At.Before(s.First) {
		s.First = rec.At
	}
	if rec.At.After(s.Last) {
		s.Last = rec.At
	}
}

// Names имена по убыванию количества, при равенстве по алфавиту
func (s *Stats) Names() []sig.Name {
	names := make([]sig.Name, 0, len(s.ByName))
	for n := range s.ByName {
		names = append(names, n)
	}
	slices.SortFunc(names, func(a, b sig.Name) int {
		if d := s.ByName[b] - s.ByName[a]; d != 0 {
			return d
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return names
}

func (s *Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "Total signals: %d\n", s.Total)
	fmt.Fprintf(w, "Distinct entities: %d\n", len(s.Entities))
	if s.Total > 0 {
		fmt.Fprintf(w, "First: %s\nLast: %s\n", s.First.Format(timeFormat), s.Last.Format(timeFormat))
	}
	fmt.Fprintln(w, "\nBy signal:")
	for _, n := range s.Names() {
		fmt.Fprintf(w, "  %s: %d\n", n, s.ByName[n])
	}
}
