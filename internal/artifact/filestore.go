// Package artifact stores uploaded payment proofs, delivery photos and
// reference images on local disk and serves them under /files.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"garment-storefront/internal/domain"
)

// Stored is the public location of a saved artifact and its content hash.
type Stored struct {
	URL    string
	SHA256 string
}

// FileStore names files by kind and content hash, so saving the same bytes
// twice yields the same URL.
type FileStore struct {
	dir     string
	urlHost string
}

func NewFileStore(dir, urlHost string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, urlHost: strings.TrimRight(urlHost, "/")}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Save(ctx context.Context, kind string, up domain.Upload) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	sum := up.SHA256()
	ext := strings.ToLower(filepath.Ext(up.Name))
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("%s-%s%s", kind, sum[:24], ext)
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if err := writeAtomic(s.dir, name, up.Data); err != nil {
			return Stored{}, err
		}
	}
	return Stored{URL: s.urlHost + "/files/" + name, SHA256: sum}, nil
}

// writeAtomic writes data to a private temp file and renames it into place.
// Concurrent writers of the same content each use their own temp file.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("move artifact: %w", err)
	}
	return nil
}
