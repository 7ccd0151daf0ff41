// Package artifact persists batch outputs: one OVAL and one XCCDF file per
// extracted rule, a file-name map per directory, and the batch report.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gyaneshwarpardhi/scapslice/internal/xmltree"
)

// FilenameMap is the name of the per-directory rule id → file name map.
const FilenameMap = "filenames.json"

// RuleKey returns the file name for a rule's artifact. Rule ids are hashed
// because they may hold characters that are unsafe in paths.
func RuleKey(ruleID string) string {
	sum := sha256.Sum256([]byte(ruleID))
	return hex.EncodeToString(sum[:]) + ".xml"
}

// LocalStore keeps artifacts on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Root returns the store directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact key %q escapes the store", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes content under key, replacing any previous artifact atomically
// via a temp file and rename.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", full, err)
	}
	return nil
}

// PutBytes is Put for in-memory content.
func (s *LocalStore) PutBytes(ctx context.Context, key string, data []byte) error {
	return s.Put(ctx, key, bytes.NewReader(data))
}

// Get opens the artifact stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, xmltree.NotFound("artifact", key)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", key, err)
	}
	return f, nil
}

// List returns the keys under prefix in sorted order, using forward slashes.
// A missing prefix yields an empty list.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := s.path(prefix)
	if prefix == "" {
		root, err = s.root, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts under %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) readAll(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the artifact stored under key.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return xmltree.NotFound("artifact", key)
		}
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// LoadFilenames reads the rule id → file name map of dir. A directory
// without one yields an empty map.
func (s *LocalStore) LoadFilenames(ctx context.Context, dir string) (map[string]string, error) {
	rc, err := s.Get(ctx, dir+"/"+FilenameMap)
	if errors.Is(err, xmltree.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	m := make(map[string]string)
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", dir, FilenameMap, err)
	}
	return m, nil
}

// SaveFilenames writes the rule id → file name map of dir.
func (s *LocalStore) SaveFilenames(ctx context.Context, dir string, m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", FilenameMap, err)
	}
	return s.PutBytes(ctx, dir+"/"+FilenameMap, append(data, '\n'))
}
