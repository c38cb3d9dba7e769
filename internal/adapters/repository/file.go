package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/teambalance/pkg/metrics"
)

const guildFileExt = ".json"

// FileStore keeps one JSON file per guild under a directory. Writes go to a
// temporary file in the same directory and are renamed into place, so a
// crash never leaves a half-written guild behind.
type FileStore struct {
	dir      string
	settings settings

	// mu serialises writers; readers only see complete files.
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		dir:      dir,
		settings: newSettings(opts),
	}
	if err := os.MkdirAll(dir, s.settings.dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return s, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+guildFileExt)
}

func (s *FileStore) Load(ctx context.Context, id string) (GuildRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLoadLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := ValidateID(id); err != nil {
		return GuildRecord{}, err
	}
	if s.isClosed() {
		return GuildRecord{}, ErrClosed
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return GuildRecord{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "read")
		return GuildRecord{}, fmt.Errorf("read guild %s: %w", id, err)
	}
	var rec GuildRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		metrics.RecordErrorByComponent("repository", "corrupt")
		return GuildRecord{}, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, id, err)
	}
	rec.ID = id
	return rec, nil
}

func (s *FileStore) Save(ctx context.Context, rec GuildRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositorySaveLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	rec.UpdatedAt = s.settings.now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guild %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.writeAtomic(s.path(rec.ID), data); err != nil {
		metrics.RecordErrorByComponent("repository", "write")
		return fmt.Errorf("write guild %s: %w", rec.ID, err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it over path.
func (s *FileStore) writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, ".guild-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), s.settings.filePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete guild %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, guildFileExt) {
			continue
		}
		id := strings.TrimSuffix(name, guildFileExt)
		if ValidateID(id) == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
