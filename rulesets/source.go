package rulesets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/liamcoop/scholarships/scholarships"
)

// ErrNoRuleset means a source has nothing configured for a scholarship.
// Loader treats it as a quiet miss rather than a failure.
var ErrNoRuleset = errors.New("no ruleset")

//go:embed defaults/*.json
var bundled embed.FS

// DefaultBundle returns the rule files shipped with the binary.
func DefaultBundle() fs.FS {
	sub, err := fs.Sub(bundled, "defaults")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source provides the raw JSON rule list for a scholarship.
type Source interface {
	Name() string
	Fetch(ctx context.Context, scholarshipID string) ([]byte, error)
}

// StoreSource serves the active persisted ruleset.
type StoreSource struct {
	store Store
}

// NewStoreSource wraps a Store as a rule source.
func NewStoreSource(store Store) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Name() string { return "store" }

// Fetch returns the active ruleset's JSON text.
func (s *StoreSource) Fetch(ctx context.Context, scholarshipID string) ([]byte, error) {
	rs, err := s.store.Active(ctx, scholarshipID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoRuleset
	}
	if err != nil {
		return nil, fmt.Errorf("load active ruleset: %w", err)
	}
	return []byte(rs.JSON), nil
}

// BundledSource serves <scholarshipID>.json files from a file system.
type BundledSource struct {
	files fs.FS
}

// NewBundledSource reads rule files from files. Use DefaultBundle for the
// embedded defaults or os.DirFS for an override directory.
func NewBundledSource(files fs.FS) *BundledSource {
	return &BundledSource{files: files}
}

func (s *BundledSource) Name() string { return "bundled" }

// Fetch reads the scholarship's bundled rule file.
func (s *BundledSource) Fetch(_ context.Context, scholarshipID string) ([]byte, error) {
	if err := scholarships.ValidateID(scholarshipID); err != nil {
		return nil, fmt.Errorf("refusing bundled lookup: %w", err)
	}

	data, err := fs.ReadFile(s.files, scholarshipID+".json")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRuleset
	}
	if err != nil {
		return nil, fmt.Errorf("read bundled rules: %w", err)
	}
	return data, nil
}
