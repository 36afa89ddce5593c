package ir

import (
	"context"
	"fmt"

	"github.com/hanpama/shapegen/internal/language"
)

type DocumentID string

type DocumentMetadata struct {
	ID       DocumentID
	Name     string
	FilePath string
}

// Discovery lists and reads the executable documents of a project.
type Discovery interface {
	ListMetadata(ctx context.Context) ([]*DocumentMetadata, error)
	ReadDocument(ctx context.Context, id DocumentID) (string, error)
}

// LoadDocuments parses every discovered document and merges them into one
// compilation unit. Documents are read in FilePath order.
func LoadDocuments(ctx context.Context, disc Discovery) (*language.QueryDocument, error) {
	metas, err := disc.ListMetadata(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]*language.QueryDocument, 0, len(metas))
	for _, meta := range metas {
		src, err := disc.ReadDocument(ctx, meta.ID)
		if err != nil {
			return nil, err
		}
		doc, err := language.ParseQueryFile(meta.FilePath, src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", meta.FilePath, err)
		}
		docs = append(docs, doc)
	}
	return language.MergeDocuments(docs...)
}
