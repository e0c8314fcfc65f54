package archive

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("export archive not configured")

// Store keeps the raw export documents users upload, so a problematic import
// can be replayed or inspected later.
type Store interface {
	StoreExport(ctx context.Context, objectKey string, body []byte) error
	LoadExport(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
	Close() error
}

type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) StoreExport(_ context.Context, _ string, _ []byte) error {
	return ErrNotConfigured
}

func (s *NoopStore) LoadExport(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNotConfigured
}

func (s *NoopStore) DeleteObject(_ context.Context, _ string) error {
	return ErrNotConfigured
}

func (s *NoopStore) Close() error {
	return nil
}
