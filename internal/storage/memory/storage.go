package memorystorage

import (
	"context"
	"sync"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/solarmarket/creative-rotation/internal/storage"
)

type eventRecord struct {
	kind      storage.EventKind
	createdAt time.Time
}

// Storage is the DB-less creative store. It honors the same idempotency
// contract as the SQL store: one counter increment per (creative, event) pair.
type Storage struct {
	mu        sync.RWMutex
	creatives map[string]creative.Creative
	order     []string
	events    map[string]eventRecord
}

func New() *Storage {
	return &Storage{
		creatives: make(map[string]creative.Creative),
		events:    make(map[string]eventRecord),
	}
}

func eventKey(creativeID, eventID string) string {
	return creativeID + "\x00" + eventID
}

func (s *Storage) CreateCreative(_ context.Context, c creative.Creative) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creatives[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.creatives[c.ID] = c

	return c.ID, nil
}

func (s *Storage) UpdateCreative(_ context.Context, c creative.Creative) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.creatives[c.ID]
	if !ok {
		return storage.ErrNotFound
	}

	// Counters and creation time are owned by the store, not the caller.
	c.ImpressionCount = current.ImpressionCount
	c.ClickCount = current.ClickCount
	c.CreatedAt = current.CreatedAt
	s.creatives[c.ID] = c

	return nil
}

func (s *Storage) GetCreative(_ context.Context, id string) (creative.Creative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creatives[id]
	if !ok {
		return creative.Creative{}, storage.ErrNotFound
	}

	return c, nil
}

func (s *Storage) ListByPosition(_ context.Context, position creative.Position) ([]creative.Creative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []creative.Creative

	for _, id := range s.order {
		c := s.creatives[id]
		if c.SlotPosition == position {
			items = append(items, c)
		}
	}

	return items, nil
}

func (s *Storage) SetStatus(_ context.Context, id string, status creative.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creatives[id]
	if !ok {
		return storage.ErrNotFound
	}

	c.Status = status
	s.creatives[id] = c

	return nil
}

func (s *Storage) IncrementImpression(_ context.Context, creativeID string, eventID string) (int64, error) {
	return s.increment(creativeID, eventID, storage.EventImpression)
}

func (s *Storage) IncrementClick(_ context.Context, creativeID string, eventID string) (int64, error) {
	return s.increment(creativeID, eventID, storage.EventClick)
}

func (s *Storage) increment(creativeID, eventID string, kind storage.EventKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creatives[creativeID]
	if !ok {
		return 0, storage.ErrNotFound
	}

	counter := func() int64 {
		if kind == storage.EventClick {
			return c.ClickCount
		}

		return c.ImpressionCount
	}

	if _, seen := s.events[eventKey(creativeID, eventID)]; seen {
		return counter(), nil
	}

	s.events[eventKey(creativeID, eventID)] = eventRecord{kind: kind, createdAt: time.Now()}

	if kind == storage.EventClick {
		c.ClickCount++
	} else {
		c.ImpressionCount++
	}
	s.creatives[creativeID] = c

	return counter(), nil
}

func (s *Storage) PurgeEvents(_ context.Context, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rec := range s.events {
		if rec.createdAt.Before(olderThan) {
			delete(s.events, key)
		}
	}

	return nil
}
