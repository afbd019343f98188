package ports

import (
	"context"

	"github.com/google/uuid"

	"coitrack/internal/domain"
)

// CertificateRepository stores certificate records. Update applies the whole
// record with an optimistic check against cert.Version and appends the given
// events to the outbox in the same transaction; on a stale version it returns
// domain.ErrVersionConflict and writes nothing.
type CertificateRepository interface {
	Create(ctx context.Context, cert *domain.Certificate, events []Event) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Certificate, error)
	Update(ctx context.Context, cert *domain.Certificate, events []Event) error
	ListPending(ctx context.Context) ([]*domain.Certificate, error)
}

// CatalogRepository loads requirement reference data.
type CatalogRepository interface {
	LoadTrades(ctx context.Context) ([]domain.Trade, error)
	LoadPrograms(ctx context.Context) ([]domain.Program, error)
	LoadJurisdictionRequirements(ctx context.Context) ([]domain.JurisdictionRequirement, error)
}

// OutboxRepository supports claiming and settling queued notification events.
type OutboxRepository interface {
	ClaimNext(ctx context.Context) (event Event, found bool, err error)
	MarkDispatched(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error
}
