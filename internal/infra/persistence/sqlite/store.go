// Package sqlite provides a durable layout store that snapshots the
// in-memory state to a single SQLite table as JSON blobs after every
// successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"romgrid/internal/infra/persistence/memory"
	"romgrid/pkg/layout"
)

var _ layout.RemoteStore = (*Store)(nil)

// Store wraps the in-memory store with SQLite persistence. Reads and the
// push channel come straight from the in-memory state; mutations snapshot
// the full state after committing.
type Store struct {
	mem  *memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) a SQLite-backed store at path and hydrates the
// in-memory state from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "romgrid.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{mem: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"blocks", "parts"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		switch bucket {
		case "blocks":
			if err := json.Unmarshal(payload, &snapshot.Blocks); err != nil {
				return fmt.Errorf("decode blocks: %w", err)
			}
			loaded = true
		case "parts":
			if err := json.Unmarshal(payload, &snapshot.Parts); err != nil {
				return fmt.Errorf("decode parts: %w", err)
			}
			loaded = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.mem.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.mem.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "blocks":
			data, err = json.Marshal(snapshot.Blocks)
		case "parts":
			data, err = json.Marshal(snapshot.Parts)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Blocks returns the block persistence contract with write-through
// snapshotting.
func (s *Store) Blocks() layout.BlockStore { return blockStore{s} }

// Parts returns the part persistence contract with write-through
// snapshotting.
func (s *Store) Parts() layout.PartStore { return partStore{s} }

// Subscribe exposes the in-memory push channel.
func (s *Store) Subscribe(ctx context.Context, projectID string, fn layout.EventHandler) (layout.Subscription, error) {
	return s.mem.Subscribe(ctx, projectID, fn)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

type blockStore struct{ s *Store }

func (b blockStore) GetByProject(ctx context.Context, projectID string) ([]layout.Block, error) {
	return b.s.mem.Blocks().GetByProject(ctx, projectID)
}

func (b blockStore) Create(ctx context.Context, block layout.Block, actor string) (layout.Block, error) {
	created, err := b.s.mem.Blocks().Create(ctx, block, actor)
	if err != nil {
		return layout.Block{}, err
	}
	if err := b.s.persist(); err != nil {
		return layout.Block{}, err
	}
	return created, nil
}

func (b blockStore) Update(ctx context.Context, id string, patch layout.BlockPatch, actor string) (layout.Block, error) {
	updated, err := b.s.mem.Blocks().Update(ctx, id, patch, actor)
	if err != nil {
		return layout.Block{}, err
	}
	if err := b.s.persist(); err != nil {
		return layout.Block{}, err
	}
	return updated, nil
}

func (b blockStore) SoftDelete(ctx context.Context, id string, actor string) error {
	if err := b.s.mem.Blocks().SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	return b.s.persist()
}

type partStore struct{ s *Store }

func (p partStore) GetByProject(ctx context.Context, projectID string) ([]layout.Part, error) {
	return p.s.mem.Parts().GetByProject(ctx, projectID)
}

func (p partStore) Create(ctx context.Context, part layout.Part, actor string) (layout.Part, error) {
	created, err := p.s.mem.Parts().Create(ctx, part, actor)
	if err != nil {
		return layout.Part{}, err
	}
	if err := p.s.persist(); err != nil {
		return layout.Part{}, err
	}
	return created, nil
}

func (p partStore) Update(ctx context.Context, id string, patch layout.PartPatch, actor string) (layout.Part, error) {
	updated, err := p.s.mem.Parts().Update(ctx, id, patch, actor)
	if err != nil {
		return layout.Part{}, err
	}
	if err := p.s.persist(); err != nil {
		return layout.Part{}, err
	}
	return updated, nil
}

func (p partStore) SoftDelete(ctx context.Context, id string, actor string) error {
	if err := p.s.mem.Parts().SoftDelete(ctx, id, actor); err != nil {
		return err
	}
	return p.s.persist()
}
