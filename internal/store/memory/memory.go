// Package memory is a mutex-guarded in-process store backend with naive
// cosine ranking.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/embeddings"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// Store keeps every entity in maps. Returned values are copies.
type Store struct {
	mu          sync.RWMutex
	decisions   map[string]store.Decision
	reflections map[string]store.Reflection
	insights    map[string]store.Insight
	summaries   map[string]store.WeeklySummary
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		decisions:   make(map[string]store.Decision),
		reflections: make(map[string]store.Reflection),
		insights:    make(map[string]store.Insight),
		summaries:   make(map[string]store.WeeklySummary),
	}
}

func copyDecision(d store.Decision) store.Decision {
	if d.Embedding != nil {
		d.Embedding = append([]float32(nil), d.Embedding...)
	}
	if d.ReviewDate != nil {
		t := *d.ReviewDate
		d.ReviewDate = &t
	}
	return d
}

// newestDecisionFirst orders by created_at descending, then id descending.
func newestDecisionFirst(ds []store.Decision) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.After(ds[j].CreatedAt)
		}
		return ds[i].ID > ds[j].ID
	})
}

func (s *Store) CreateDecision(_ context.Context, d *store.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Stamp(&d.ID, &d.CreatedAt)
	if _, exists := s.decisions[d.ID]; exists {
		return fmt.Errorf("decision %s already exists", d.ID)
	}
	s.decisions[d.ID] = copyDecision(*d)
	return nil
}

func (s *Store) GetDecision(_ context.Context, id string) (*store.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	if !ok {
		return nil, fmt.Errorf("decision %s: %w", id, store.ErrNotFound)
	}
	d = copyDecision(d)
	return &d, nil
}

func (s *Store) filterDecisions(keep func(store.Decision) bool) []store.Decision {
	out := make([]store.Decision, 0)
	for _, d := range s.decisions {
		if keep(d) {
			out = append(out, copyDecision(d))
		}
	}
	newestDecisionFirst(out)
	return out
}

func (s *Store) ListDecisions(_ context.Context, userID string, limit int) ([]store.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.filterDecisions(func(d store.Decision) bool { return d.UserID == userID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListDecisionsSince(_ context.Context, userID string, since time.Time) ([]store.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterDecisions(func(d store.Decision) bool {
		return d.UserID == userID && !d.CreatedAt.Before(since)
	}), nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, d := range s.decisions {
		seen[d.UserID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) DeleteDecision(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[id]; !ok {
		return fmt.Errorf("decision %s: %w", id, store.ErrNotFound)
	}
	delete(s.decisions, id)
	for rid, r := range s.reflections {
		if r.DecisionID == id {
			delete(s.reflections, rid)
		}
	}
	return nil
}

func (s *Store) NearestDecisions(_ context.Context, userID string, vector []float32, k int) ([]store.ScoredDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		return []store.ScoredDecision{}, nil
	}
	scored := make([]store.ScoredDecision, 0)
	for _, d := range s.decisions {
		if d.UserID != userID || len(d.Embedding) == 0 || len(d.Embedding) != len(vector) {
			continue
		}
		scored = append(scored, store.ScoredDecision{
			Decision:   copyDecision(d),
			Similarity: embeddings.Cosine(vector, d.Embedding),
		})
	}
	store.SortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) ListEmbeddedDecisions(_ context.Context, userID string) ([]store.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterDecisions(func(d store.Decision) bool {
		return d.UserID == userID && len(d.Embedding) > 0
	}), nil
}

func (s *Store) CreateReflection(_ context.Context, r *store.Reflection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[r.DecisionID]; !ok {
		return fmt.Errorf("decision %s: %w", r.DecisionID, store.ErrNotFound)
	}
	store.Stamp(&r.ID, &r.CreatedAt)
	s.reflections[r.ID] = *r
	return nil
}

// userReflections returns the user's reflections, newest first.
func (s *Store) userReflections(userID string) []store.Reflection {
	out := make([]store.Reflection, 0)
	for _, r := range s.reflections {
		if d, ok := s.decisions[r.DecisionID]; ok && d.UserID == userID {
			out = append(out, r)
		}
	}
	sortReflections(out)
	return out
}

func sortReflections(rs []store.Reflection) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}

func (s *Store) LatestReflection(_ context.Context, decisionID string) (*store.Reflection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rs []store.Reflection
	for _, r := range s.reflections {
		if r.DecisionID == decisionID {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return nil, fmt.Errorf("reflection for decision %s: %w", decisionID, store.ErrNotFound)
	}
	sortReflections(rs)
	r := rs[0]
	return &r, nil
}

func (s *Store) CountReflections(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userReflections(userID)), nil
}

func (s *Store) RecentLessons(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lessons := make([]string, 0)
	for _, r := range s.userReflections(userID) {
		if limit > 0 && len(lessons) == limit {
			break
		}
		if strings.TrimSpace(r.Lessons) != "" {
			lessons = append(lessons, r.Lessons)
		}
	}
	return lessons, nil
}

func (s *Store) CreateInsight(_ context.Context, in *store.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Stamp(&in.ID, &in.CreatedAt)
	s.insights[in.ID] = *in
	return nil
}

func (s *Store) ListInsights(_ context.Context, userID, insightType string, limit int) ([]store.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Insight, 0)
	for _, in := range s.insights {
		if in.UserID == userID && (insightType == "" || in.Type == insightType) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteInsights(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.insights, id)
	}
	return nil
}

func (s *Store) CreateWeeklySummary(_ context.Context, ws *store.WeeklySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store.Stamp(&ws.ID, &ws.CreatedAt)
	s.summaries[ws.ID] = *ws
	return nil
}

func (s *Store) LatestWeeklySummary(_ context.Context, userID string) (*store.WeeklySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *store.WeeklySummary
	for _, ws := range s.summaries {
		if ws.UserID != userID {
			continue
		}
		if latest == nil || ws.CreatedAt.After(latest.CreatedAt) ||
			(ws.CreatedAt.Equal(latest.CreatedAt) && ws.ID > latest.ID) {
			c := ws
			latest = &c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("weekly summary for %s: %w", userID, store.ErrNotFound)
	}
	return latest, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
