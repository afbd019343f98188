package ports

import (
	"time"

	"github.com/google/uuid"

	"coitrack/internal/domain"
)

// Event types emitted on state-machine edges. The core appends these to the
// outbox inside the transition transaction; the dispatcher worker delivers
// them asynchronously.
const (
	EventObligationsAssigned   = "coi.obligations_assigned"
	EventCertificateSubmitted  = "coi.submitted"
	EventDeficiencyFound       = "coi.deficiency_found"
	EventCertificateApproved   = "coi.approved"
	EventHHReadyForSignature   = "hh.ready_for_signature"
	EventHHGenerationFailed    = "hh.generation_failed"
	EventHHReadyForCountersign = "hh.ready_for_countersignature"
	EventHHFullyExecuted       = "hh.fully_executed"
)

// Event is one outbound notification.
type Event struct {
	ID            uuid.UUID
	Type          string
	RecipientRole domain.Role
	CertificateID uuid.UUID
	Payload       map[string]any
	QueuedAt      time.Time
}

// NewEvent builds an event for a certificate edge.
func NewEvent(eventType string, recipient domain.Role, certID uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		RecipientRole: recipient,
		CertificateID: certID,
		Payload:       payload,
	}
}
