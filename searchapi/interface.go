// Package searchapi defines the boundary to the external semantic
// search backend: a request/reply client speaking a two-frame wire
// protocol (operation code frame + JSON payload frame).
package searchapi

import "context"

// Client is the Search Adapter boundary.
type Client interface {
	ListIndexes(ctx context.Context) ([]string, error)
	ListDocuments(ctx context.Context, index string) ([]string, error)
	CreateIndex(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	AddDocument(ctx context.Context, index, doc, text string) error
	RemoveDocument(ctx context.Context, index, doc string) error
	Query(ctx context.Context, index, query string) (string, error)
}
