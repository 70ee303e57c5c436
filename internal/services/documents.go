package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/models"
)

// DocumentLibrary uploads the course files matching a glob once per process and
// hands out the resulting handles.
type DocumentLibrary struct {
	backend Backend
	pattern string
	log     logrus.FieldLogger
	inspect func(path string) (int, error)

	mu     sync.Mutex
	loaded bool
	docs   []models.DocumentHandle
}

func NewDocumentLibrary(backend Backend, pattern string, log logrus.FieldLogger) *DocumentLibrary {
	return &DocumentLibrary{
		backend: backend,
		pattern: pattern,
		log:     log,
		inspect: inspectPDF,
	}
}

// Load returns the reference documents, uploading them on first use. A failed
// upload leaves nothing cached so the next call starts over.
func (l *DocumentLibrary) Load(ctx context.Context) ([]models.DocumentHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.docs, nil
	}

	paths := l.discover()
	if len(paths) == 0 {
		l.log.WithField("pattern", l.pattern).Warn("No reference documents found")
		l.loaded = true
		l.docs = nil
		return nil, nil
	}

	l.log.Infof("Loading %d course chapters...", len(paths))

	docs := make([]models.DocumentHandle, 0, len(paths))
	for _, path := range paths {
		doc, err := l.upload(ctx, path)
		var berr *BackendError
		if errors.As(err, &berr) {
			return nil, err
		}
		if err != nil {
			l.log.WithError(err).WithField("file", path).Warn("Skipping unreadable document")
			continue
		}
		docs = append(docs, doc)
	}

	l.loaded = true
	l.docs = docs
	l.log.WithField("documents", len(docs)).Info("✓ Course material uploaded")
	return docs, nil
}

// Count reports how many documents are loaded, 0 before the first Load.
func (l *DocumentLibrary) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.docs)
}

// discover lists matching regular files in lexical order. A malformed pattern
// or unreadable or corrupt file is logged and skipped.
func (l *DocumentLibrary) discover() []string {
	matches, err := filepath.Glob(l.pattern)
	if err != nil {
		l.log.WithError(err).WithField("pattern", l.pattern).Warn("Invalid documents pattern")
		return nil
	}
	sort.Strings(matches)

	var paths []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if isPDF(path) && l.inspect != nil {
			pages, err := l.inspect(path)
			if err != nil {
				l.log.WithError(err).WithField("file", path).Warn("Skipping unreadable PDF")
				continue
			}
			l.log.WithFields(logrus.Fields{"file": path, "pages": pages}).Debug("Found course document")
		}
		paths = append(paths, path)
	}
	return paths
}

func (l *DocumentLibrary) upload(ctx context.Context, path string) (models.DocumentHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.DocumentHandle{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mimeType := "application/pdf"
	if !isPDF(path) {
		mt, err := mimetype.DetectFile(path)
		if err == nil {
			mimeType = mt.String()
		}
	}

	doc, err := l.backend.UploadDocument(ctx, filepath.Base(path), mimeType, f)
	if err != nil {
		return models.DocumentHandle{}, &BackendError{Op: "upload " + filepath.Base(path), Err: err}
	}
	return doc, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func inspectPDF(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}
