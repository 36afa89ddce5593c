package ir

import (
	"context"
	"fmt"
	"sort"
)

type InMemoryDocument struct {
	Name    string
	Content string
}

// InMemoryDiscovery is a Discovery over documents held in memory, for tests.
type InMemoryDiscovery struct {
	metas    []*DocumentMetadata
	contents map[DocumentID]string
}

func NewInMemoryDiscovery(docs []InMemoryDocument) *InMemoryDiscovery {
	d := &InMemoryDiscovery{contents: make(map[DocumentID]string)}
	for _, doc := range docs {
		id := DocumentID(doc.Name)
		d.metas = append(d.metas, &DocumentMetadata{
			ID:       id,
			Name:     doc.Name,
			FilePath: doc.Name + ".graphql",
		})
		d.contents[id] = doc.Content
	}
	sort.Slice(d.metas, func(i, j int) bool { return d.metas[i].FilePath < d.metas[j].FilePath })
	return d
}

func (d *InMemoryDiscovery) ListMetadata(ctx context.Context) ([]*DocumentMetadata, error) {
	return d.metas, nil
}

func (d *InMemoryDiscovery) ReadDocument(ctx context.Context, id DocumentID) (string, error) {
	content, ok := d.contents[id]
	if !ok {
		return "", fmt.Errorf("document %q not found", id)
	}
	return content, nil
}
