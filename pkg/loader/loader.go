// Package loader extracts plain text from documents on disk.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

var (
	ErrUnsupported   = errors.New("unsupported document type")
	ErrEmptyDocument = errors.New("document has no extractable text")
)

// Registry maps media types to the loader that handles them.
type Registry struct {
	loaders map[models.MediaType]types.Loader
}

// NewRegistry returns a registry with the built-in loaders.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[models.MediaType]types.Loader)}
	r.Register(models.MediaPDF, NewPDFLoader())
	r.Register(models.MediaDOCX, DOCXLoader{})
	r.Register(models.MediaPlainText, TextLoader{})
	r.Register(models.MediaHTML, HTMLLoader{})
	return r
}

func (r *Registry) Register(mt models.MediaType, l types.Loader) {
	r.loaders[mt] = l
}

// Resolve picks the loader for path from its extension.
func (r *Registry) Resolve(path string) (models.MediaType, types.Loader, error) {
	mt := models.MediaTypeFromExt(filepath.Ext(path))
	l, ok := r.loaders[mt]
	if !ok {
		return mt, nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	return mt, l, nil
}

// Supported reports whether some loader handles path.
func (r *Registry) Supported(path string) bool {
	_, _, err := r.Resolve(path)
	return err == nil
}

// Load resolves the loader once and extracts the document text.
func (r *Registry) Load(ctx context.Context, path string) (*models.Document, error) {
	mt, l, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := l.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(path))
	}

	return &models.Document{
		ID:        filepath.Base(path),
		Path:      path,
		MediaType: mt,
		Content:   content,
	}, nil
}
