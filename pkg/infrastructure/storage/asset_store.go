package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/repository"
)

// KeyFunc maps a domain to its dedup key
type KeyFunc func(domain string) string

// AssetStore implements repository.AssetStore on a flat directory of
// <key><ext> files. Writes are create-if-absent per key: a per-key mutex
// serializes writers in this process and O_EXCL guards the final file.
type AssetStore struct {
	dir   string
	key   KeyFunc
	index repository.DomainFilter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAssetStore opens (creating if needed) the asset directory and seeds
// the index with every key already present
func NewAssetStore(dir string, key KeyFunc, index repository.DomainFilter) (*AssetStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	s := &AssetStore{
		dir:   dir,
		key:   key,
		index: index,
		locks: make(map[string]*sync.Mutex),
	}

	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		s.index.Add(k)
	}
	return s, nil
}

// Dir returns the asset directory
func (s *AssetStore) Dir() string {
	return s.dir
}

func (s *AssetStore) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Keys lists the dedup keys of the files in the directory
func (s *AssetStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset directory: %w", err)
	}

	seen := make(map[string]bool)
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		// state files such as ledger.db share the directory
		k := s.key(stem(entry.Name()))
		if !strings.Contains(k, ".") || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys, nil
}

// Lookup returns the asset stored for the domain
func (s *AssetStore) Lookup(domain string) (*entity.Asset, bool, error) {
	key := s.key(domain)
	if key == "" {
		return nil, false, fmt.Errorf("invalid domain %q", domain)
	}
	if !s.index.Contains(key) {
		return nil, false, nil
	}
	return s.probe(key)
}

// probe looks for <key>.* and www.<key>.* on disk
func (s *AssetStore) probe(key string) (*entity.Asset, bool, error) {
	for _, name := range []string{key, "www." + key} {
		matches, err := filepath.Glob(filepath.Join(s.dir, escapeGlob(name)+".*"))
		if err != nil {
			return nil, false, err
		}
		for _, match := range matches {
			base := filepath.Base(match)
			if stem(base) != name {
				continue
			}
			return &entity.Asset{
				Domain:    key,
				Path:      match,
				Extension: filepath.Ext(base),
			}, true, nil
		}
	}
	return nil, false, nil
}

// Save writes the download as <key><ext> unless the key already holds an
// asset. In that case the existing asset is returned with
// entity.ErrAlreadyAcquired.
func (s *AssetStore) Save(domain string, download *entity.Download) (*entity.Asset, error) {
	key := s.key(domain)
	if key == "" {
		return nil, fmt.Errorf("invalid domain %q", domain)
	}
	if download == nil || len(download.Body) == 0 {
		return nil, errors.New("empty download")
	}

	l := s.lock(key)
	l.Lock()
	defer l.Unlock()

	if existing, ok, err := s.probe(key); err != nil {
		return nil, err
	} else if ok {
		s.index.Add(key)
		return existing, entity.ErrAlreadyAcquired
	}

	ext := download.Extension
	if ext == "" || !strings.HasPrefix(ext, ".") {
		ext = ".img"
	}
	path := filepath.Join(s.dir, key+ext)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			s.index.Add(key)
			return &entity.Asset{Domain: key, Path: path, Extension: ext}, entity.ErrAlreadyAcquired
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	if _, err := file.Write(download.Body); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close asset: %w", err)
	}

	s.index.Add(key)
	return &entity.Asset{Domain: key, Path: path, Extension: ext}, nil
}

// stem strips the last extension from a file name
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
