package landing

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cda/internal/common"
	"cda/pkg/errors"
)

// ObjectStore is the minimal object listing/reading surface shared by a local
// directory and an S3 bucket. Keys always use forward slashes.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DirStore serves objects from a directory tree
type DirStore struct {
	root string
}

// NewDirStore validates root and returns a store over it
func NewDirStore(root string) (*DirStore, error) {
	cleaned, err := common.CleanPath(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid landing directory")
	}
	info, err := os.Stat(cleaned)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeFileNotFound, "Landing directory does not exist").
			WithContext("path", cleaned)
	}
	return &DirStore{root: cleaned}, nil
}

// List returns keys under prefix in lexical order
func (d *DirStore) List(ctx context.Context, prefix string) ([]string, error) {
	start, err := common.Within(d.root, prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(start, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to list landing directory").
			WithContext("prefix", prefix)
	}

	sort.Strings(keys)
	return keys, nil
}

// Open opens the object at key
func (d *DirStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := common.Within(d.root, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) // #nosec G304 - confined to the store root
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileNotFound, "Failed to open landing file").
			WithContext("key", key)
	}
	return f, nil
}

func joinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return path.Join(kept...)
}
