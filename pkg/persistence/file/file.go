// Package file provides a file-based document store: one JSON file per document.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/socialflow/pkg/persistence"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store keeps documents under root/<collection>/<id>.json.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore creates a store rooted at root. A file:// prefix is accepted.
func NewStore(root string) *Store {
	return &Store{root: strings.Replace(root, "file://", "", 1)}
}

// NewPersistence creates the document repositories on a file store.
func NewPersistence(root string) *persistence.Documents {
	return persistence.NewDocuments(NewStore(root))
}

func (s *Store) documentPath(collection, id string) (string, error) {
	if !validID.MatchString(collection) || !validID.MatchString(id) {
		return "", fmt.Errorf("%w: %q", persistence.ErrInvalidDocumentID, collection+"/"+id)
	}

	return filepath.Join(s.root, collection, id+".json"), nil
}

func (s *Store) Get(_ context.Context, collection, id string) ([]byte, error) {
	filePath, err := s.documentPath(collection, id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrDocumentNotFound
		}

		return nil, &persistence.DocumentError{Op: "Get", Collection: collection, ID: id, Err: err}
	}

	return body, nil
}

func (s *Store) Put(_ context.Context, collection, id string, document []byte) error {
	filePath, err := s.documentPath(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, document, 0600); err != nil {
		return &persistence.DocumentError{Op: "Put", Collection: collection, ID: id, Err: err}
	}

	if err := os.Rename(tmp, filePath); err != nil {
		return &persistence.DocumentError{Op: "Put", Collection: collection, ID: id, Err: err}
	}

	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	filePath, err := s.documentPath(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return &persistence.DocumentError{Op: "Delete", Collection: collection, ID: id, Err: err}
	}

	return nil
}

// List returns the collection's documents ordered by file name.
func (s *Store) List(_ context.Context, collection string) ([][]byte, error) {
	if !validID.MatchString(collection) {
		return nil, fmt.Errorf("%w: %q", persistence.ErrInvalidDocumentID, collection)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root := os.DirFS(filepath.Join(s.root, collection))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	sort.Strings(files)

	documents := make([][]byte, 0, len(files))

	for _, name := range files {
		body, err := fs.ReadFile(root, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return nil, &persistence.DocumentError{Op: "List", Collection: collection, ID: name, Err: err}
		}

		documents = append(documents, body)
	}

	return documents, nil
}

// HealthCheck verifies the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (s *Store) Close(_ context.Context) error {
	return nil
}
