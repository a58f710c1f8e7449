// Package migrations exposes the embedded identity schema as one
// migration set with a postgres and a sqlite rendition, and hands it to
// whatever runner the host application uses.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	identity "github.com/goliatone/go-identity"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultLabel = "go-identity"
	embeddedRoot = "data/sql/migrations"
	sqliteSubdir = "sqlite"
)

// Set is the identity schema ready for registration: the same numbered
// migration files rendered once per dialect.
type Set struct {
	label    string
	dialects map[string]fs.FS
}

// Load carves the per-dialect filesystems out of the embedded migration
// tree. A single override root may be supplied, pointing either at a
// module-shaped tree or directly at the migration files.
func Load(sources ...fs.FS) (*Set, error) {
	root := identity.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base := root
	if !hasMigrationFiles(base) {
		sub, err := fs.Sub(root, embeddedRoot)
		if err != nil || !hasMigrationFiles(sub) {
			return nil, fmt.Errorf("migrations: no *.up.sql files under %q", embeddedRoot)
		}
		base = sub
	}
	sqliteFS, err := fs.Sub(base, sqliteSubdir)
	if err != nil || !hasMigrationFiles(sqliteFS) {
		return nil, fmt.Errorf("migrations: sqlite rendition is missing")
	}

	return &Set{
		label: defaultLabel,
		dialects: map[string]fs.FS{
			DialectPostgres: base,
			DialectSQLite:   sqliteFS,
		},
	}, nil
}

func (s *Set) Label() string {
	if s == nil {
		return ""
	}
	return s.label
}

// Dialects lists the available renditions in stable order.
func (s *Set) Dialects() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.dialects))
	for dialect := range s.dialects {
		out = append(out, dialect)
	}
	sort.Strings(out)
	return out
}

// FS returns the filesystem holding the rendition for the dialect.
func (s *Set) FS(dialect string) (fs.FS, bool) {
	if s == nil {
		return nil, false
	}
	fsys, ok := s.dialects[normalizeDialect(dialect)]
	return fsys, ok
}

// RegisterFunc receives one dialect rendition at a time.
type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*registerConfig)

type registerConfig struct {
	label    string
	dialects []string
}

// WithLabel overrides the source label reported to the runner.
func WithLabel(label string) Option {
	return func(cfg *registerConfig) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			cfg.label = trimmed
		}
	}
}

// WithDialects restricts registration to the named dialects; the default
// registers every rendition the set carries.
func WithDialects(dialects ...string) Option {
	return func(cfg *registerConfig) {
		selected := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			if normalized := normalizeDialect(dialect); normalized != "" {
				selected = append(selected, normalized)
			}
		}
		if len(selected) > 0 {
			cfg.dialects = selected
		}
	}
}

// Register loads the embedded set and hands each selected dialect to
// registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (*Set, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	set, err := Load()
	if err != nil {
		return nil, err
	}

	cfg := registerConfig{label: set.label, dialects: set.Dialects()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	set.label = cfg.label

	for _, dialect := range cfg.dialects {
		fsys, ok := set.FS(dialect)
		if !ok {
			return nil, fmt.Errorf("migrations: dialect %q has no rendition", dialect)
		}
		if err := registerFn(ctx, dialect, set.label, fsys); err != nil {
			return nil, fmt.Errorf("migrations: register %s: %w", dialect, err)
		}
	}
	return set, nil
}

func normalizeDialect(dialect string) string {
	return strings.ToLower(strings.TrimSpace(dialect))
}

func hasMigrationFiles(fsys fs.FS) bool {
	matches, err := fs.Glob(fsys, "*.up.sql")
	return err == nil && len(matches) > 0
}
