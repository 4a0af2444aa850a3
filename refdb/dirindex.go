package refdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// DirIndex is a directory-backed Index, grounded on the teacher's
// core/rawdb.FileDB layout (flat directory of files named by key, exclusive
// process lock, in-memory index rebuilt on open) but without FileDB's WAL:
// a ref write is a single small file, so writeFile-to-temp-then-rename is
// already atomic and there is nothing a WAL would add.
//
// Reference names may themselves contain "/" (the namespace separator), so
// on-disk filenames are the ref name with "/" replaced by "_". Loading turns
// only the first "_" back into "/": the namespace segment holds no "_" and
// a ref name holds a single "/", so underscores that base64url puts in the
// hash segment are left as they are.
type DirIndex struct {
	mu    sync.RWMutex
	dir   string
	lock  *flock.Flock
	cache map[string][]byte
}

// NewDirIndex opens or creates a directory-backed reference index at dir.
func NewDirIndex(dir string) (*DirIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("refdb: mkdir: %w", err)
	}
	lk := flock.New(filepath.Join(dir, "LOCK"))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("refdb: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("refdb: index %q is locked by another process", dir)
	}
	idx := &DirIndex{dir: dir, lock: lk, cache: make(map[string][]byte)}
	if err := idx.load(); err != nil {
		idx.lock.Unlock()
		return nil, fmt.Errorf("refdb: load: %w", err)
	}
	return idx, nil
}

func fileName(refName string) string {
	return strings.ReplaceAll(refName, "/", "_")
}

func refName(fileName string) string {
	return strings.Replace(fileName, "_", "/", 1)
}

func (idx *DirIndex) load() error {
	entries, err := os.ReadDir(idx.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "LOCK" {
			continue
		}
		if strings.HasSuffix(e.Name(), ".tmp") {
			os.Remove(filepath.Join(idx.dir, e.Name()))
			continue
		}
		data, err := os.ReadFile(filepath.Join(idx.dir, e.Name()))
		if err != nil {
			return err
		}
		idx.cache[refName(e.Name())] = data
	}
	return nil
}

func (idx *DirIndex) path(name string) string {
	return filepath.Join(idx.dir, fileName(name))
}

func (idx *DirIndex) SetRef(name string, value []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	path := idx.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("refdb: write temp ref: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("refdb: rename ref into place: %w", err)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	idx.cache[name] = cp
	return nil
}

func (idx *DirIndex) DeleteRef(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.cache[name]; !ok {
		return ErrNotFound
	}
	if err := os.Remove(idx.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refdb: delete ref: %w", err)
	}
	delete(idx.cache, name)
	return nil
}

func (idx *DirIndex) LookupRef(name string) ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.cache[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (idx *DirIndex) ListRefs(glob string) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var names []string
	for k := range idx.cache {
		if MatchGlob(glob, k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (idx *DirIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lock.Unlock()
}

var _ Index = (*DirIndex)(nil)
