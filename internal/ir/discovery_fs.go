package ir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanpama/shapegen/internal/language"
)

// FileSystemDiscovery implements Discovery for .graphql and .gql files under a
// root directory.
type FileSystemDiscovery struct {
	rootDir string
	metas   []*DocumentMetadata
	paths   map[DocumentID]string
}

// NewFileSystemDiscovery walks rootDir. Paths in exclude (relative to rootDir
// or absolute) are skipped, typically the schema file.
func NewFileSystemDiscovery(ctx context.Context, rootDir string, exclude ...string) (*FileSystemDiscovery, error) {
	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if !filepath.IsAbs(p) {
			p = filepath.Join(rootDir, p)
		}
		skip[absPath(p)] = true
	}
	d := &FileSystemDiscovery{
		rootDir: rootDir,
		paths:   make(map[DocumentID]string),
	}
	err := filepath.WalkDir(rootDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || skip[absPath(path)] {
			return nil
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".graphql" && ext != ".gql" {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}
		id := DocumentID(filepath.ToSlash(rel))
		d.paths[id] = path
		d.metas = append(d.metas, &DocumentMetadata{
			ID:       id,
			Name:     strings.TrimSuffix(entry.Name(), ext),
			FilePath: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory %q: %w", rootDir, err)
	}
	sort.Slice(d.metas, func(i, j int) bool { return d.metas[i].FilePath < d.metas[j].FilePath })
	return d, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (d *FileSystemDiscovery) ListMetadata(ctx context.Context) ([]*DocumentMetadata, error) {
	return d.metas, nil
}

func (d *FileSystemDiscovery) ReadDocument(ctx context.Context, id DocumentID) (string, error) {
	fp, ok := d.paths[id]
	if !ok {
		return "", fmt.Errorf("document %q not found", id)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return "", fmt.Errorf("failed to read document %q: %w", id, err)
	}
	return string(content), nil
}

// LoadDir is a convenience function that discovers and merges the documents
// under rootDir.
func LoadDir(ctx context.Context, rootDir string, exclude ...string) (*language.QueryDocument, error) {
	disc, err := NewFileSystemDiscovery(ctx, rootDir, exclude...)
	if err != nil {
		return nil, err
	}
	return LoadDocuments(ctx, disc)
}
