package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "decisiond.decision.captured", Subject(DefaultSubjectPrefix, DecisionCaptured))
	assert.Equal(t, "acme.weekly.analyzed", Subject("acme", WeeklyAnalyzed))
}

func TestNew(t *testing.T) {
	before := time.Now().UTC()
	e := New(ReflectionSubmitted, "u1", "r1", map[string]any{"accuracy_score": 80})

	assert.Equal(t, ReflectionSubmitted, e.Kind)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "r1", e.EntityID)
	assert.False(t, e.OccurredAt.Before(before))
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
}

func TestEvent_JSON(t *testing.T) {
	e := Event{Kind: DecisionCaptured, UserID: "u1", OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"decision.captured","user_id":"u1","occurred_at":"2026-03-02T09:00:00Z"}`, string(data))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	p.Publish(context.Background(), New(DecisionCaptured, "u", "d", nil))
	p.Publish(context.Background(), New(PrinciplesExtracted, "u", "", nil))

	assert.Equal(t, []string{DecisionCaptured, PrinciplesExtracted}, r.Kinds())
	assert.Len(t, r.Events(), 2)
	assert.NoError(t, p.Close())
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	p.Publish(context.Background(), New(WeeklyAnalyzed, "u", "", nil))
	assert.NoError(t, p.Close())
}
