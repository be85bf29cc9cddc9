package object

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// indexPath maps a cache request key (an identity+revision or
// identity+"/versions" string) to the file that records its content hash,
// mirroring the teacher's one-ref-per-file layout under refs/.
func (s *Store) indexPath(key string) string {
	return filepath.Join(s.root, "index", filepath.FromSlash(key))
}

// PutKey atomically records that key currently resolves to h, so a later
// LookupKey for the same request can skip the network round trip.
func (s *Store) PutKey(key string, h Hash) error {
	path := s.indexPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("object index mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("object index tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(string(h)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object index write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object index close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object index rename: %w", err)
	}
	return nil
}

// LookupKey returns the hash previously recorded for key, if any.
func (s *Store) LookupKey(key string) (Hash, bool) {
	data, err := os.ReadFile(s.indexPath(key))
	if err != nil {
		return "", false
	}
	return Hash(strings.TrimSpace(string(data))), true
}
