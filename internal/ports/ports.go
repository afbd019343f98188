package ports

import (
	"context"

	"coitrack/internal/domain"
)

// External collaborators. Implementations are out of scope for the core;
// the adapters package and tests provide them.

// DocumentRenderer produces human-readable artifacts.
type DocumentRenderer interface {
	RenderCertificate(ctx context.Context, cert *domain.Certificate) ([]byte, error)
	RenderHoldHarmless(ctx context.Context, cert *domain.Certificate) ([]byte, error)
}

// FileStore persists a file and returns an opaque reference.
type FileStore interface {
	Store(ctx context.Context, name string, data []byte) (url string, err error)
}

// Notifier delivers one event. Failures are the dispatcher's problem: they
// are logged and recorded, never propagated into the transition that queued
// the event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
