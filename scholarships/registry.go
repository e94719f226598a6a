// Package scholarships holds the registry of scholarships an applicant can
// be evaluated against.
package scholarships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a scholarship id is not registered.
var ErrNotFound = errors.New("scholarship not found")

// Scholarship is a registry entry. Only enabled scholarships are evaluated.
type Scholarship struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsEnabled bool   `json:"isEnabled"`
}

// Registry lists registered scholarships.
type Registry interface {
	List(ctx context.Context) ([]Scholarship, error)
	Get(ctx context.Context, id string) (Scholarship, error)
}

// Enabled filters a list down to enabled scholarships, keeping order.
func Enabled(list []Scholarship) []Scholarship {
	out := make([]Scholarship, 0, len(list))
	for _, s := range list {
		if s.IsEnabled {
			out = append(out, s)
		}
	}
	return out
}

// InMemoryRegistry is a thread-safe Registry seeded in code or from config.
type InMemoryRegistry struct {
	entries map[string]Scholarship
	mu      sync.RWMutex
}

// NewInMemoryRegistry creates a registry holding the given scholarships.
func NewInMemoryRegistry(list ...Scholarship) (*InMemoryRegistry, error) {
	r := &InMemoryRegistry{entries: make(map[string]Scholarship, len(list))}
	for _, s := range list {
		if err := r.Put(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put adds or replaces a scholarship.
func (r *InMemoryRegistry) Put(s Scholarship) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("invalid scholarship: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = s
	return nil
}

// List returns every scholarship ordered by id.
func (r *InMemoryRegistry) List(_ context.Context) ([]Scholarship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Scholarship, 0, len(r.entries))
	for _, s := range r.entries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Get returns one scholarship.
func (r *InMemoryRegistry) Get(_ context.Context, id string) (Scholarship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.entries[id]
	if !exists {
		return Scholarship{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// PostgresRegistry reads the scholarships table.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry creates a PostgreSQL-backed registry.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// List returns every scholarship ordered by id.
func (r *PostgresRegistry) List(ctx context.Context) ([]Scholarship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, is_enabled
		FROM scholarships
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scholarships: %w", err)
	}
	defer rows.Close()

	list := []Scholarship{}
	for rows.Next() {
		var s Scholarship
		if err := rows.Scan(&s.ID, &s.Name, &s.IsEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan scholarship row: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scholarship rows: %w", err)
	}
	return list, nil
}

// Get returns one scholarship.
func (r *PostgresRegistry) Get(ctx context.Context, id string) (Scholarship, error) {
	var s Scholarship
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, is_enabled
		FROM scholarships
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.IsEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return Scholarship{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Scholarship{}, fmt.Errorf("failed to get scholarship: %w", err)
	}
	return s, nil
}
