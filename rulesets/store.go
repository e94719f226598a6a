package rulesets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a scholarship has no active ruleset.
	ErrNotFound = errors.New("ruleset not found")
	// ErrVersionExists is returned when publishing a version twice.
	ErrVersionExists = errors.New("ruleset version already exists")
	// ErrInvalidRuleset is returned when a record is missing required fields.
	ErrInvalidRuleset = errors.New("invalid ruleset")
)

// Ruleset is one published version of a scholarship's rules. JSON holds the
// serialized rule list exactly as it was published.
type Ruleset struct {
	ID            string    `json:"id"`
	ScholarshipID string    `json:"scholarshipId"`
	Version       string    `json:"version"`
	JSON          string    `json:"json"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists ruleset versions.
//
// Publish makes the record the only active version for its scholarship.
// Active returns ErrNotFound when no version is active; when several are
// active it returns the most recently created one. List returns every
// version newest first.
type Store interface {
	Publish(ctx context.Context, rs *Ruleset) error
	Active(ctx context.Context, scholarshipID string) (*Ruleset, error)
	List(ctx context.Context, scholarshipID string) ([]*Ruleset, error)
}

// prepare checks rs and returns a copy with generated fields filled.
// Stores persist the copy and write it back to rs only once the publish
// succeeds, so a rejected record is returned to the caller untouched.
func prepare(rs *Ruleset, now time.Time) (Ruleset, error) {
	if rs == nil {
		return Ruleset{}, fmt.Errorf("%w: ruleset is required", ErrInvalidRuleset)
	}
	if rs.ScholarshipID == "" {
		return Ruleset{}, fmt.Errorf("%w: scholarship id is required", ErrInvalidRuleset)
	}
	if rs.Version == "" {
		return Ruleset{}, fmt.Errorf("%w: version is required", ErrInvalidRuleset)
	}

	record := *rs
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.IsActive = true
	return record, nil
}

// InMemoryStore implements Store using an in-memory map. Thread-safe.
type InMemoryStore struct {
	rulesets map[string][]*Ruleset // scholarshipID -> versions, oldest first
	mu       sync.RWMutex
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory ruleset store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rulesets: make(map[string][]*Ruleset),
		now:      time.Now,
	}
}

// Publish stores a new active version and deactivates prior ones.
func (s *InMemoryStore) Publish(_ context.Context, rs *Ruleset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := prepare(rs, s.now())
	if err != nil {
		return err
	}

	versions := s.rulesets[record.ScholarshipID]
	for _, existing := range versions {
		if existing.Version == record.Version {
			return fmt.Errorf("%w: %s@%s", ErrVersionExists, record.ScholarshipID, record.Version)
		}
	}
	for _, existing := range versions {
		existing.IsActive = false
	}

	s.rulesets[record.ScholarshipID] = append(versions, &record)
	*rs = record
	return nil
}

// Put stores a record as-is, bypassing the single-active bookkeeping.
// Useful for seeding histories imported from another system.
func (s *InMemoryStore) Put(rs Ruleset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = s.now()
	}
	s.rulesets[rs.ScholarshipID] = append(s.rulesets[rs.ScholarshipID], &rs)
}

// Active returns the newest active version for a scholarship.
func (s *InMemoryStore) Active(ctx context.Context, scholarshipID string) (*Ruleset, error) {
	versions, err := s.List(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	for _, rs := range versions {
		if rs.IsActive {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, scholarshipID)
}

// List returns copies of every version, newest first.
func (s *InMemoryStore) List(_ context.Context, scholarshipID string) ([]*Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.rulesets[scholarshipID]
	out := make([]*Ruleset, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		cp := *versions[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
