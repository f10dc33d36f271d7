// Package shard stores encoded fragments on the local filesystem.
//
// Layout under the data directory:
//
//	<aa>/<bb>/<name>.manifest.json
//	<aa>/<bb>/<name>_<segment>_<index>.frag
//
// where aa/bb are the first hex digits of a hash of the object name, which
// keeps directories balanced. Writes are atomic (temp file + rename).
package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/segment"
)

// File permission constants.
const (
	dirPermissions      = 0750
	filePermissions     = 0600
	fragmentExt         = ".frag"
	manifestSuffix      = ".manifest.json"
	defaultWriteWorkers = 8
)

// Store errors.
var (
	ErrFragmentNotFound = errors.New("fragment not found")
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidName      = errors.New("invalid object name")
)

// Manifest records how an object was encoded.
type Manifest struct {
	Name        string             `json:"name"`
	Size        int                `json:"size"`
	StoredSize  int                `json:"stored_size"`
	Compression string             `json:"compression"`
	Driver      driver.Config      `json:"driver"`
	Info        driver.SegmentInfo `json:"info"`
	Fragments   int                `json:"fragments"`
}

// Store handles local fragment storage operations.
type Store struct {
	dataDir string
	workers int
}

// NewStore creates a fragment store rooted at dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create fragment data directory: %w", err)
	}

	return &Store{dataDir: dataDir, workers: defaultWriteWorkers}, nil
}

// objectDir returns the balanced directory for an object.
func (s *Store) objectDir(name string) string {
	hashHex := fmt.Sprintf("%016x", xxhash.Sum64String(name))
	return filepath.Join(s.dataDir, hashHex[:2], hashHex[2:4])
}

// sanitizeName makes a name safe for use in a filename.
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := range len(name) {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '.' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	return string(result)
}

// FragmentPath returns the filesystem path for a fragment.
func (s *Store) FragmentPath(name string, seg, index int) string {
	return filepath.Join(s.objectDir(name), fmt.Sprintf("%s_%d_%d%s", sanitizeName(name), seg, index, fragmentExt))
}

// ManifestPath returns the filesystem path for an object manifest.
func (s *Store) ManifestPath(name string) string {
	return filepath.Join(s.objectDir(name), sanitizeName(name)+manifestSuffix)
}

// writeAtomic writes data to path through a temporary file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"

	//nolint:gosec // G304: tmpPath is constructed from trusted config
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmpPath) }() // Clean up on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// WriteFragment writes one fragment to local storage.
func (s *Store) WriteFragment(ctx context.Context, name string, seg, index int, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.FragmentPath(name, seg, index)
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("fragment %d/%d: %w", seg, index, err)
	}

	return path, nil
}

// ReadFragment reads one fragment from local storage.
func (s *Store) ReadFragment(ctx context.Context, name string, seg, index int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.FragmentPath(name, seg, index)

	//nolint:gosec // G304: path is constructed from trusted config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFragmentNotFound, path)
		}

		return nil, fmt.Errorf("failed to read fragment: %w", err)
	}

	return data, nil
}

// DeleteFragment deletes one fragment. Deleting a missing fragment is not an error.
func (s *Store) DeleteFragment(ctx context.Context, name string, seg, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.FragmentPath(name, seg, index)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete fragment: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(path))

	return nil
}

// FragmentExists checks if a fragment exists. A done context reports false.
func (s *Store) FragmentExists(ctx context.Context, name string, seg, index int) bool {
	if ctx.Err() != nil {
		return false
	}

	_, err := os.Stat(s.FragmentPath(name, seg, index))
	return err == nil
}

// WriteManifest stores the manifest of an object.
func (s *Store) WriteManifest(m *Manifest) error {
	if m.Name == "" {
		return ErrInvalidName
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return writeAtomic(s.ManifestPath(m.Name), data)
}

// ReadManifest loads the manifest of an object.
func (s *Store) ReadManifest(name string) (*Manifest, error) {
	//nolint:gosec // G304: path is constructed from trusted config
	data, err := os.ReadFile(s.ManifestPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}

		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &m, nil
}

// PutObject writes every fragment of obj in parallel, then the manifest.
func (s *Store) PutObject(ctx context.Context, m *Manifest, obj *segment.Object) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for seg, fragments := range obj.Segments {
		for index, frag := range fragments {
			g.Go(func() error {
				_, err := s.WriteFragment(gctx, m.Name, seg, index, frag)
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Debug().
		Str("name", m.Name).
		Int("segments", len(obj.Segments)).
		Int("fragments", m.Fragments).
		Msg("Stored object fragments")

	return s.WriteManifest(m)
}

// GetObject loads the manifest and every fragment that is still present.
// Missing fragments are left nil in their slot.
func (s *Store) GetObject(ctx context.Context, name string) (*Manifest, *segment.Object, error) {
	m, err := s.ReadManifest(name)
	if err != nil {
		return nil, nil, err
	}

	obj := &segment.Object{
		Size:     m.StoredSize,
		Info:     m.Info,
		Segments: make([][][]byte, m.Info.NumSegments),
	}

	for seg := range obj.Segments {
		obj.Segments[seg] = make([][]byte, m.Fragments)
		for index := range m.Fragments {
			frag, err := s.ReadFragment(ctx, name, seg, index)
			if errors.Is(err, ErrFragmentNotFound) {
				log.Warn().Str("name", name).Int("segment", seg).Int("index", index).Msg("Fragment missing")
				continue
			}
			if err != nil {
				return nil, nil, err
			}

			obj.Segments[seg][index] = frag
		}
	}

	return m, obj, nil
}

// DeleteObject removes the manifest and every fragment of an object.
func (s *Store) DeleteObject(ctx context.Context, name string) error {
	m, err := s.ReadManifest(name)
	if err != nil {
		return err
	}

	for seg := range m.Info.NumSegments {
		for index := range m.Fragments {
			if err := s.DeleteFragment(ctx, name, seg, index); err != nil {
				return err
			}
		}
	}

	path := s.ManifestPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(path))

	return nil
}

// ListObjects returns the names of all stored manifests.
func (s *Store) ListObjects(ctx context.Context) ([]string, error) {
	var names []string

	err := filepath.Walk(s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.HasSuffix(path, manifestSuffix) {
			return nil
		}

		m, err := s.ReadManifestFile(path)
		if err != nil {
			return err
		}

		names = append(names, m.Name)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return names, nil
}

// ReadManifestFile decodes a manifest at an explicit path.
func (s *Store) ReadManifestFile(path string) (*Manifest, error) {
	//nolint:gosec // G304: path comes from walking the data directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &m, nil
}

// cleanEmptyDirs removes empty directories up to the data directory.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.dataDir && dir != "." && dir != "/" {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(dir); err != nil {
			break
		}

		dir = filepath.Dir(dir)
	}
}
