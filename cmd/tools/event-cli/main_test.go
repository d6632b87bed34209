package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/eventbus"
	sig "github.com/annel0/entity-renderer/internal/signal"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a, ,b "))
}

func TestParseSinceTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSinceTime("30m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-30*time.Minute), got)

	got, err = parseSinceTime("2024-04-30T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), got)

	got, err = parseSinceTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	_, err = parseSinceTime("вчера", now)
	assert.Error(t, err)
}

func TestWanted(t *testing.T) {
	rec := eventbus.SignalRecord{Event: sig.Event{Name: sig.EnterEntity}}
	assert.True(t, wanted(rec, nil))
	assert.True(t, wanted(rec, toNames([]string{"enterEntity", "leaveEntity"})))
	assert.False(t, wanted(rec, toNames([]string{"hoverEnterEntity"})))
}

func TestStats(t *testing.T) {
	a, b := entity.NewID(), entity.NewID()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStats()
	s.Add(eventbus.SignalRecord{At: base.Add(time.Second), Event: sig.Event{Name: sig.EnterEntity, EntityID: a}})
	s.Add(eventbus.SignalRecord{At: base, Event: sig.Event{Name: sig.HoverEnterEntity, EntityID: b}})
	s.Add(eventbus.SignalRecord{At: base.Add(2 * time.Second), Event: sig.Event{Name: sig.EnterEntity, EntityID: b}})

	assert.Equal(t, 3, s.Total)
	assert.Len(t, s.Entities, 2)
	assert.Equal(t, base, s.First)
	assert.Equal(t, base.Add(2*time.Second), s.Last)
	assert.Equal(t, []sig.Name{sig.EnterEntity, sig.HoverEnterEntity}, s.Names())

	var out bytes.Buffer
	s.Print(&out)
	assert.Contains(t, out.String(), "enterEntity: 2")
	assert.Contains(t, out.String(), "Distinct entities: 2")
}

func TestFormatRecord(t *testing.T) {
	id := entity.NewID()
	rec := eventbus.SignalRecord{
		At:    time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC),
		Event: sig.Event{Name: sig.WebEventReceived, EntityID: id, Message: "hello"},
	}
	out := formatRecord(rec)
	assert.Contains(t, out, "[12:00:01.000] webEventReceived "+id.String())
	assert.Contains(t, out, "Message: hello")
}
