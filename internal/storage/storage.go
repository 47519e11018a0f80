// Package storage persists raw uploaded documents. The pipeline treats it
// as an external collaborator: blobs go in at upload time and come back out
// for chunking/indexing, keyed by an opaque blob reference. The filesystem
// implementation mirrors an object store's flat-key layout so a bucket-backed
// implementation can slot in behind the same interface.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object describes one stored blob.
type Object struct {
	// Filename is the original upload name.
	Filename string

	// BlobRef is the opaque reference used for Get/Delete.
	BlobRef string

	// Size is the blob size in bytes.
	Size int64

	// ContentType is the MIME type guessed from the file extension.
	ContentType string

	// CreatedAt is when the blob was stored.
	CreatedAt time.Time
}

// NotFoundError reports a blob reference that does not exist.
type NotFoundError struct {
	// BlobRef is the missing reference.
	BlobRef string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: blob not found: %s", e.BlobRef)
}

// Store is the interface for persisting and retrieving raw documents.
// Implementations must be safe to call from multiple goroutines.
type Store interface {
	// Put stores data under a fresh blob reference scoped to namespace and
	// returns the object metadata.
	Put(ctx context.Context, data []byte, name, namespace string) (*Object, error)

	// Get returns the blob's raw bytes.
	Get(ctx context.Context, blobRef string) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob is a NotFoundError.
	Delete(ctx context.Context, blobRef string) error

	// List enumerates objects in a namespace, newest first.
	List(ctx context.Context, namespace string) ([]Object, error)
}

// FSStore is a Store backed by a local directory. Each namespace is a
// subdirectory; blob names carry a timestamp and a short random id so
// re-uploading the same filename never overwrites an earlier blob.
type FSStore struct {
	// root is the base directory for all namespaces.
	root string
}

// NewFSStore creates the root directory if needed and returns a ready store.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: root directory must not be empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Put stores data as "{namespace}/{timestamp}_{id}_{filename}".
func (s *FSStore) Put(_ context.Context, data []byte, name, namespace string) (*Object, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("storage: invalid file name %q", name)
	}

	u := uuid.New()
	blobName := fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102_150405"), hex.EncodeToString(u[:4]), base)
	blobRef := filepath.ToSlash(filepath.Join(namespace, blobName))

	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create namespace dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, blobName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("storage: write %s: %w", path, err)
	}

	return &Object{
		Filename:    base,
		BlobRef:     blobRef,
		Size:        int64(len(data)),
		ContentType: contentType(base),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Get returns the blob's raw bytes.
func (s *FSStore) Get(_ context.Context, blobRef string) ([]byte, error) {
	path, err := s.resolve(blobRef)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{BlobRef: blobRef}
		}
		return nil, fmt.Errorf("storage: read %s: %w", blobRef, err)
	}
	return data, nil
}

// Delete removes the blob.
func (s *FSStore) Delete(_ context.Context, blobRef string) error {
	path, err := s.resolve(blobRef)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{BlobRef: blobRef}
		}
		return fmt.Errorf("storage: delete %s: %w", blobRef, err)
	}
	return nil
}

// List enumerates the namespace's objects, newest first. A namespace that
// has never been written to lists as empty.
func (s *FSStore) List(_ context.Context, namespace string) ([]Object, error) {
	dir := filepath.Join(s.root, namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", namespace, err)
	}

	var objects []Object
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Filename:    originalName(e.Name()),
			BlobRef:     filepath.ToSlash(filepath.Join(namespace, e.Name())),
			Size:        info.Size(),
			ContentType: contentType(e.Name()),
			CreatedAt:   info.ModTime().UTC(),
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

// resolve maps a blob reference to an on-disk path, rejecting references
// that would escape the store root.
func (s *FSStore) resolve(blobRef string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(blobRef))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("storage: invalid blob reference %q", blobRef)
	}
	return filepath.Join(s.root, clean), nil
}

// originalName strips the "{timestamp}_{id}_" prefix from a blob name,
// recovering the upload filename. Names without the prefix pass through
// unchanged.
func originalName(blobName string) string {
	parts := strings.SplitN(blobName, "_", 4)
	if len(parts) == 4 && len(parts[0]) == 8 && len(parts[1]) == 6 && len(parts[2]) == 8 {
		return parts[3]
	}
	return blobName
}

// contentType guesses a MIME type from the file extension.
func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
