// Package store implements durable, process-shareable storage of named
// collections of id-keyed records. Each collection lives in a single JSON
// file inside the store directory. Writers replace the whole file through a
// write-to-temp-then-rename sequence so readers never observe a partial
// write, and advisory file locks serialize access across processes.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/gofrs/flock"
)

var (
	// ErrDuplicateID is returned by Insert when a record with the same id
	// already exists in the collection.
	ErrDuplicateID = errors.New("record id already exists")

	// ErrCorruptCollection is returned when a collection file cannot be
	// parsed. There is no partial-read recovery.
	ErrCorruptCollection = errors.New("collection file is corrupt")
)

var collectionName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Record is any value with a stable string identity.
type Record interface {
	RecordID() string
}

// Store owns a data directory shared by all collections.
type Store struct {
	dir string
}

// Open creates the data directory if needed and returns a store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %q -> %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Collection persists one record type in one JSON file. The zero value is
// not usable; create collections with NewCollection.
type Collection[T Record] struct {
	name     string
	path     string
	lockPath string
}

// NewCollection binds a record type to a named collection file inside the
// store. Names are restricted to alphanumerics, dashes and underscores so a
// name can never escape the data directory.
func NewCollection[T Record](s *Store, name string) (*Collection[T], error) {
	if !collectionName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}

	return &Collection[T]{
		name:     name,
		path:     filepath.Join(s.dir, name+".json"),
		lockPath: filepath.Join(s.dir, "."+name+".lock"),
	}, nil
}

// ReadAll returns every record in the collection under a shared lock. A
// missing file is an empty collection; a malformed file is a fatal error.
func (c *Collection[T]) ReadAll() ([]T, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s -> %w", c.path, err)
	}
	defer f.Close()

	fileLock := flock.New(c.path)
	if err := fileLock.RLock(); err != nil {
		return nil, fmt.Errorf("shared lock %s -> %w", c.path, err)
	}
	defer fileLock.Unlock()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s -> %w", c.path, err)
	}

	return c.decode(raw)
}

func (c *Collection[T]) decode(raw []byte) ([]T, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var records []T
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCollection, c.name, err)
	}

	for _, r := range records {
		if r.RecordID() == "" {
			return nil, fmt.Errorf("%w: %s: record without id", ErrCorruptCollection, c.name)
		}
	}

	return records, nil
}

// WriteAll replaces the collection file with the given records. On most
// platforms the file is written to a temp file and atomically renamed into
// place. Windows cannot reliably rename over an open file, so there the
// existing file is truncated and rewritten under an exclusive lock instead.
func (c *Collection[T]) WriteAll(records []T) error {
	if records == nil {
		records = []T{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s -> %w", c.name, err)
	}
	data = append(data, '\n')

	if runtime.GOOS == "windows" {
		return c.writeInPlace(data)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+c.name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s -> %w", c.name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s -> %w", c.name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp for %s -> %w", c.name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s -> %w", c.name, err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("atomic rename for %s -> %w", c.name, err)
	}

	return nil
}

func (c *Collection[T]) writeInPlace(data []byte) error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return fmt.Errorf("open %s -> %w", c.path, err)
	}
	defer f.Close()

	fileLock := flock.New(c.path)
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("exclusive lock %s -> %w", c.path, err)
	}
	defer fileLock.Unlock()

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate %s -> %w", c.path, err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write %s -> %w", c.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s -> %w", c.path, err)
	}

	return nil
}

// WithExclusiveLock runs fn while holding the collection's exclusive lock.
// It is the only primitive strong enough for read-then-decide-then-write
// sequences whose uniqueness condition spans more than the record id, such
// as one-vote-per-device checks. fn must limit itself to ReadAll and
// WriteAll; the other mutating operations take this same lock and would
// deadlock.
func (c *Collection[T]) WithExclusiveLock(fn func() error) error {
	fileLock := flock.New(c.lockPath)
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("exclusive lock %s -> %w", c.lockPath, err)
	}
	defer fileLock.Unlock()

	return fn()
}

// FindByID returns the record with the given id, reporting whether it exists.
func (c *Collection[T]) FindByID(id string) (T, bool, error) {
	var zero T

	all, err := c.ReadAll()
	if err != nil {
		return zero, false, err
	}

	for _, r := range all {
		if r.RecordID() == id {
			return r, true, nil
		}
	}

	return zero, false, nil
}

// FindWhere returns every record matching pred, in file order.
func (c *Collection[T]) FindWhere(pred func(T) bool) ([]T, error) {
	all, err := c.ReadAll()
	if err != nil {
		return nil, err
	}

	var matched []T
	for _, r := range all {
		if pred(r) {
			matched = append(matched, r)
		}
	}

	return matched, nil
}

// Insert appends a new record, failing with ErrDuplicateID when the id is
// already taken.
func (c *Collection[T]) Insert(rec T) error {
	return c.WithExclusiveLock(func() error {
		all, err := c.ReadAll()
		if err != nil {
			return err
		}

		for _, r := range all {
			if r.RecordID() == rec.RecordID() {
				return fmt.Errorf("%s: id %q -> %w", c.name, rec.RecordID(), ErrDuplicateID)
			}
		}

		return c.WriteAll(append(all, rec))
	})
}

// Update applies mutate to the record with the given id and persists the
// collection. The second return reports whether the id existed; a missing id
// is not an error, the caller decides the semantics. mutate must not change
// the record's id.
func (c *Collection[T]) Update(id string, mutate func(*T)) (T, bool, error) {
	var (
		zero    T
		updated T
		found   bool
	)

	err := c.WithExclusiveLock(func() error {
		all, err := c.ReadAll()
		if err != nil {
			return err
		}

		for i := range all {
			if all[i].RecordID() != id {
				continue
			}

			mutate(&all[i])
			if all[i].RecordID() != id {
				return fmt.Errorf("%s: mutate changed record id %q", c.name, id)
			}

			updated = all[i]
			found = true
			break
		}

		if !found {
			return nil
		}

		return c.WriteAll(all)
	})
	if err != nil {
		return zero, false, err
	}

	return updated, found, nil
}

// Delete removes the record with the given id, reporting whether a record
// was actually removed.
func (c *Collection[T]) Delete(id string) (bool, error) {
	n, err := c.DeleteWhere(func(r T) bool { return r.RecordID() == id })
	return n > 0, err
}

// DeleteWhere removes every record matching pred and returns how many were
// removed.
func (c *Collection[T]) DeleteWhere(pred func(T) bool) (int, error) {
	var removed int

	err := c.WithExclusiveLock(func() error {
		all, err := c.ReadAll()
		if err != nil {
			return err
		}

		kept := all[:0:0]
		for _, r := range all {
			if pred(r) {
				removed++
				continue
			}
			kept = append(kept, r)
		}

		if removed == 0 {
			return nil
		}

		return c.WriteAll(kept)
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
