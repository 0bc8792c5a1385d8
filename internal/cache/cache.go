// Package cache stores generated documents by request fingerprint.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/starford/scribe/internal/models"
)

// Store is the document cache used by the generation orchestrator.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the live document for key. Expired entries are misses.
	Get(ctx context.Context, key string) (*models.GeneratedDocument, bool)
	// Set stores doc under key for ttl.
	Set(ctx context.Context, key string, doc *models.GeneratedDocument, ttl time.Duration) error
}

type entry struct {
	doc      models.GeneratedDocument
	storedAt time.Time
	ttl      time.Duration
}

// Memory is an in-process Store. Expired entries are evicted lazily on
// lookup; there is no background sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (*models.GeneratedDocument, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.storedAt) > e.ttl {
		delete(m.entries, key)
		return nil, false
	}
	doc := cloneDocument(e.doc)
	return &doc, true
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, doc *models.GeneratedDocument, ttl time.Duration) error {
	if doc == nil {
		return nil
	}
	m.mu.Lock()
	m.entries[key] = entry{doc: cloneDocument(*doc), storedAt: m.now(), ttl: ttl}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// cloneDocument copies the slices so callers cannot mutate cached state.
func cloneDocument(d models.GeneratedDocument) models.GeneratedDocument {
	out := d
	out.Sections = cloneSections(d.Sections)
	out.FAQ = append([]models.FAQItem(nil), d.FAQ...)
	out.InternalLinks = append([]models.InternalLink(nil), d.InternalLinks...)
	return out
}

func cloneSections(in []models.Section) []models.Section {
	if in == nil {
		return nil
	}
	out := make([]models.Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Subsections = cloneSections(s.Subsections)
	}
	return out
}
