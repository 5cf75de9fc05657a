// Package store keeps named study configurations in a local SQLite database
// so that extracted bindings can be reused between builds.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"acrf/edc"
)

// ErrNotFound is returned for unknown configuration ids.
var ErrNotFound = errors.New("configuration not found")

const schema = `
CREATE TABLE IF NOT EXISTS studies (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	payload BLOB NOT NULL,
	created INTEGER NOT NULL,
	updated INTEGER NOT NULL
);`

// Entry describes stored configuration. Study is only filled by Get.
type Entry struct {
	ID      string
	Name    string
	Created time.Time
	Updated time.Time
	Study   *edc.Study
}

type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens (creating when necessary) database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	conn, err := sqlite.OpenConn(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open store '%s': %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare store '%s': %w", path, err)
	}
	return &Store{conn: conn, log: log.Named("store")}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Save stores study under id, new id (UUIDv7) is generated when id is empty.
// Returns id used.
func (s *Store) Save(id, name string, study *edc.Study) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("configuration name is empty")
	}
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("unable to generate configuration id: %w", err)
		}
		id = u.String()
	}
	payload, err := study.Encode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	err = sqlitex.Execute(s.conn, `
INSERT INTO studies (id, name, payload, created, updated) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, payload = excluded.payload, updated = excluded.updated`,
		&sqlitex.ExecOptions{Args: []any{id, name, payload, now, now}})
	if err != nil {
		return "", fmt.Errorf("unable to save configuration '%s': %w", name, err)
	}
	s.log.Debug("Configuration saved", zap.String("id", id), zap.String("name", name))
	return id, nil
}

// List returns stored configurations in natural order of names.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	err := sqlitex.Execute(s.conn, `SELECT id, name, created, updated FROM studies`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, Entry{
				ID:      stmt.ColumnText(0),
				Name:    stmt.ColumnText(1),
				Created: time.UnixMilli(stmt.ColumnInt64(2)),
				Updated: time.UnixMilli(stmt.ColumnInt64(3)),
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("unable to list configurations: %w", err)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case natural.Less(a.Name, b.Name):
			return -1
		case natural.Less(b.Name, a.Name):
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return entries, nil
}

func (s *Store) Get(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		entry   *Entry
		payload []byte
	)
	err := sqlitex.Execute(s.conn, `SELECT id, name, created, updated, payload FROM studies WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry = &Entry{
					ID:      stmt.ColumnText(0),
					Name:    stmt.ColumnText(1),
					Created: time.UnixMilli(stmt.ColumnInt64(2)),
					Updated: time.UnixMilli(stmt.ColumnInt64(3)),
				}
				payload = make([]byte, stmt.ColumnLen(4))
				stmt.ColumnBytes(4, payload)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration %s: %w", id, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if entry.Study, err = edc.Decode(payload); err != nil {
		return nil, fmt.Errorf("stored configuration %s is damaged: %w", id, err)
	}
	return entry, nil
}

func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn, `DELETE FROM studies WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("unable to remove configuration %s: %w", id, err)
	}
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.log.Debug("Configuration removed", zap.String("id", id))
	return nil
}

// Export writes configuration as JSON file into dir, file is named after the
// configuration. Returns path of the file.
func (s *Store) Export(id, dir string) (string, error) {
	entry, err := s.Get(id)
	if err != nil {
		return "", err
	}
	data, err := entry.Study.Encode()
	if err != nil {
		return "", err
	}
	name := slug.Make(entry.Name)
	if name == "" {
		name = entry.ID
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("unable to export configuration: %w", err)
	}
	return path, nil
}
