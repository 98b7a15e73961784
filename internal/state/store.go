// Package state persists the client's reactions and post ownership as a
// single record so the three sets are always written together.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const (
	// RecordFile is the file name of the persisted record inside the state dir.
	RecordFile = "reactions.json"

	// CorruptSuffix is appended to a record file that could not be read
	// when it is moved aside.
	CorruptSuffix = ".corrupt"

	recordVersion = 1
)

// ErrCorrupt reports a record file that could not be read. The file has been
// moved aside so a later Save starts fresh without destroying it.
var ErrCorrupt = errors.New("state: record unreadable")

// Legacy per-set files, named after the keys the browser client used.
const (
	LegacyLikedKey    = "likedPosts"
	LegacyDislikedKey = "dislikedPosts"
	LegacyCreatedKey  = "createdPosts"
)

// Record is the full persisted client state.
type Record struct {
	Version  int    `json:"version"`
	ClientID string `json:"clientId"`
	Liked    IDSet  `json:"liked"`
	Disliked IDSet  `json:"disliked"`
	Created  IDSet  `json:"created"`
}

// NewRecord returns an empty record with a fresh client identity.
func NewRecord() Record {
	return Record{
		Version:  recordVersion,
		ClientID: uuid.NewString(),
		Liked:    IDSet{},
		Disliked: IDSet{},
		Created:  IDSet{},
	}
}

// Clone deep-copies the record.
func (r Record) Clone() Record {
	return Record{
		Version:  r.Version,
		ClientID: r.ClientID,
		Liked:    r.Liked.Clone(),
		Disliked: r.Disliked.Clone(),
		Created:  r.Created.Clone(),
	}
}

// WithDefaults returns r with a client id and non-nil sets.
func (r Record) WithDefaults() Record {
	r.applyDefaults()
	return r
}

func (r *Record) applyDefaults() {
	if r.Version == 0 {
		r.Version = recordVersion
	}
	if r.ClientID == "" {
		r.ClientID = uuid.NewString()
	}
	if r.Liked == nil {
		r.Liked = IDSet{}
	}
	if r.Disliked == nil {
		r.Disliked = IDSet{}
	}
	if r.Created == nil {
		r.Created = IDSet{}
	}
}

// Store loads and saves the record in one step.
type Store interface {
	Load() (Record, error)
	Save(Record) error
}

// FileStore keeps the record as JSON on disk. Writes go to a temp file that
// is renamed over the previous record.
type FileStore struct {
	dir string
	mu  sync.Mutex
	// blocked holds the load failure of a record that could not be moved
	// aside. Save refuses to overwrite it.
	blocked error
}

// NewFileStore roots a store at dir, creating it when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: ensure dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the record file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, RecordFile)
}

// Load reads the record. A missing record is rebuilt from legacy per-set
// files when present, otherwise a fresh empty record is returned. An
// unreadable record is renamed with CorruptSuffix and ErrCorrupt returned.
func (s *FileStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.loadLegacy()
		}
		return Record{}, s.moveAsideLocked(fmt.Errorf("read %s: %w", s.Path(), err))
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, s.moveAsideLocked(fmt.Errorf("parse %s: %w", s.Path(), err))
	}
	s.blocked = nil
	rec.applyDefaults()
	return rec, nil
}

// moveAsideLocked renames the record to the first free CorruptSuffix name.
func (s *FileStore) moveAsideLocked(cause error) error {
	dst := s.Path() + CorruptSuffix
	for i := 1; ; i++ {
		if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = fmt.Sprintf("%s%s.%d", s.Path(), CorruptSuffix, i)
	}
	if err := os.Rename(s.Path(), dst); err != nil {
		s.blocked = fmt.Errorf("state: %v (move aside: %v)", cause, err)
		return s.blocked
	}
	s.blocked = nil
	return fmt.Errorf("%w: %v; moved to %s", ErrCorrupt, cause, filepath.Base(dst))
}

// Save replaces the record on disk.
func (s *FileStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked != nil {
		return fmt.Errorf("state: refusing to overwrite unreadable record: %w", s.blocked)
	}
	rec.applyDefaults()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, RecordFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: replace record: %w", err)
	}
	return nil
}

func (s *FileStore) loadLegacy() (Record, error) {
	rec := NewRecord()
	sets := []struct {
		key string
		dst *IDSet
	}{
		{LegacyLikedKey, &rec.Liked},
		{LegacyDislikedKey, &rec.Disliked},
		{LegacyCreatedKey, &rec.Created},
	}
	for _, entry := range sets {
		path := filepath.Join(s.dir, entry.key+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Record{}, fmt.Errorf("state: read %s: %w", path, err)
		}
		var set IDSet
		if err := json.Unmarshal(data, &set); err != nil {
			return Record{}, fmt.Errorf("state: parse %s: %w", path, err)
		}
		*entry.dst = set
	}
	for id := range rec.Liked {
		rec.Disliked.Remove(id)
	}
	return rec, nil
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	rec   *Record
	saves int
	err   error
}

// NewMemoryStore seeds a store with rec.
func NewMemoryStore(rec Record) *MemoryStore {
	clone := rec.Clone()
	clone.applyDefaults()
	return &MemoryStore{rec: &clone}
}

// Load returns a copy of the held record.
func (m *MemoryStore) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Record{}, m.err
	}
	if m.rec == nil {
		return NewRecord(), nil
	}
	return m.rec.Clone(), nil
}

// Save replaces the held record with a copy of rec.
func (m *MemoryStore) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	clone := rec.Clone()
	clone.applyDefaults()
	m.rec = &clone
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetErr makes subsequent Load and Save calls fail with err. Nil clears it.
func (m *MemoryStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
