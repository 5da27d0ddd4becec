// Package mock provides an in-memory store.Store implementation for tests
// and for running the pipeline without a database.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-sentry/internal/store"
)

// Store keeps all records in memory. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	persons    map[string]store.Person
	detections []store.Detection
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{persons: make(map[string]store.Person)}
}

func (s *Store) UpsertPerson(_ context.Context, name string, imageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p, ok := s.persons[name]; ok {
		p.ImageCount = imageCount
		p.UpdatedAt = now
		s.persons[name] = p
		return nil
	}
	s.nextID++
	s.persons[name] = store.Person{
		ID:         s.nextID,
		Name:       name,
		ImageCount: imageCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *Store) RemovePerson(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.persons, name)
	return nil
}

func (s *Store) ListPersons(_ context.Context) ([]store.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	persons := make([]store.Person, 0, len(s.persons))
	for _, p := range s.persons {
		persons = append(persons, p)
	}
	sort.Slice(persons, func(a, b int) bool { return persons[a].Name < persons[b].Name })
	return persons, nil
}

func (s *Store) RecordDetection(_ context.Context, d store.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	d.ID = s.nextID
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now()
	}
	s.detections = append(s.detections, d)
	return nil
}

func (s *Store) RecentDetections(_ context.Context, limit int) ([]store.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Detection, len(s.detections))
	copy(out, s.detections)
	sort.Slice(out, func(a, b int) bool { return out[a].DetectedAt.After(out[b].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DetectionStats(_ context.Context, since time.Time) ([]store.PersonStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName := make(map[string]*store.PersonStats)
	for _, d := range s.detections {
		if d.DetectedAt.Before(since) {
			continue
		}
		st, ok := byName[d.Name]
		if !ok {
			st = &store.PersonStats{Name: d.Name}
			byName[d.Name] = st
		}
		st.Detections++
		if d.DetectedAt.After(st.LastSeen) {
			st.LastSeen = d.DetectedAt
		}
	}

	stats := make([]store.PersonStats, 0, len(byName))
	for _, st := range byName {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(a, b int) bool { return stats[a].Detections > stats[b].Detections })
	return stats, nil
}

func (s *Store) Close() error {
	return nil
}

// Verify interface compliance.
var _ store.Store = (*Store)(nil)
