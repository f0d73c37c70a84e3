package searchapi

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by every Disconnected call.
var ErrNotConfigured = errors.New("searchapi: no search backend configured")

// Disconnected is the Client used when the mount configuration names no
// search backend. The filesystem still exposes /semantic_search; every
// operation under it fails with an I/O error instead of the mount
// being refused outright.
type Disconnected struct{}

var _ Client = Disconnected{}

func (Disconnected) ListIndexes(ctx context.Context) ([]string, error) {
	return nil, ErrNotConfigured
}

func (Disconnected) ListDocuments(ctx context.Context, index string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (Disconnected) CreateIndex(ctx context.Context, index string) error {
	return ErrNotConfigured
}

func (Disconnected) DeleteIndex(ctx context.Context, index string) error {
	return ErrNotConfigured
}

func (Disconnected) AddDocument(ctx context.Context, index, doc, text string) error {
	return ErrNotConfigured
}

func (Disconnected) RemoveDocument(ctx context.Context, index, doc string) error {
	return ErrNotConfigured
}

func (Disconnected) Query(ctx context.Context, index, query string) (string, error) {
	return "", ErrNotConfigured
}
