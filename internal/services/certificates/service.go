package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"coitrack/internal/domain"
	"coitrack/internal/logger"
	"coitrack/internal/ports"
	"coitrack/internal/services/compliance"
	"coitrack/internal/services/requirements"
)

// Service drives the certificate lifecycle and the hold-harmless signature
// lifecycle. Every operation takes the acting role explicitly; nothing is
// read from ambient session state. Transitions against one certificate are
// serialized by a per-certificate lock plus the repository's optimistic
// version check, so concurrent admins cannot both approve.
type Service struct {
	certs     ports.CertificateRepository
	resolver  *requirements.Service
	validator *compliance.Service
	renderer  ports.DocumentRenderer
	files     ports.FileStore
	log       *logger.Logger
	locks     keyedLocks
}

func New(certs ports.CertificateRepository, resolver *requirements.Service, validator *compliance.Service, renderer ports.DocumentRenderer, files ports.FileStore, baseLog *logger.Logger) *Service {
	return &Service{
		certs:     certs,
		resolver:  resolver,
		validator: validator,
		renderer:  renderer,
		files:     files,
		log:       baseLog.With("service", "certificates"),
	}
}

// CreateParams describes a subcontractor being added to a project.
type CreateParams struct {
	ProjectID          uuid.UUID
	SubcontractorID    uuid.UUID
	ProjectName        string
	SubcontractorName  string
	GeneralContractor  string
	StateCode          string
	ProgramID          string
	Trades             []string
	AdditionalInsureds []string
}

// Create opens a certificate record in awaiting_broker_upload with the
// obligations for the assignment resolved and snapshotted.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Certificate, error) {
	set, err := s.resolver.Resolve(p.StateCode, p.ProgramID, p.Trades)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	cert := &domain.Certificate{
		ID:                 uuid.New(),
		ProjectID:          p.ProjectID,
		SubcontractorID:    p.SubcontractorID,
		ProjectName:        p.ProjectName,
		SubcontractorName:  p.SubcontractorName,
		GeneralContractor:  p.GeneralContractor,
		StateCode:          p.StateCode,
		ProgramID:          p.ProgramID,
		Trades:             p.Trades,
		AdditionalInsureds: p.AdditionalInsureds,
		Obligations:        set.Obligations,
		Status:             domain.StatusAwaitingBrokerUpload,
		HoldHarmlessStatus: domain.HHNone,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	events := []ports.Event{ports.NewEvent(ports.EventObligationsAssigned, domain.RoleBroker, cert.ID, map[string]any{
		"subcontractor": cert.SubcontractorName,
		"project":       cert.ProjectName,
		"trades":        cert.Trades,
		"winning_tier":  set.WinningTier,
		"obligations":   set.Obligations,
	})}
	if err := s.certs.Create(ctx, cert, events); err != nil {
		return nil, err
	}
	s.log.Info("certificate created", "certificate_id", cert.ID, "project", cert.ProjectName, "trades", cert.Trades)
	return cert, nil
}

// Get returns a certificate by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	return s.certs.Get(ctx, id)
}

// ListPending returns certificates that are not yet fully compliant.
func (s *Service) ListPending(ctx context.Context) ([]*domain.Certificate, error) {
	return s.certs.ListPending(ctx)
}

// SubmitUpload records broker-supplied coverage data and moves the record
// into admin review, from the initial state or from deficiency_pending.
func (s *Service) SubmitUpload(ctx context.Context, id uuid.UUID, role domain.Role, coverage domain.CertificateCoverage, fileName string, file []byte) (*domain.Certificate, error) {
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if err := domain.CertificateMachine.Step(cert.Status, domain.StatusUnderAdminReview, role); err != nil {
			return nil, err
		}
		if len(file) > 0 {
			url, err := s.files.Store(ctx, fileName, file)
			if err != nil {
				return nil, fmt.Errorf("store upload: %w", err)
			}
			cert.COIFileURL = url
		}
		cert.Coverage = coverage
		cert.Status = domain.StatusUnderAdminReview
		return []ports.Event{ports.NewEvent(ports.EventCertificateSubmitted, domain.RoleAdmin, cert.ID, map[string]any{
			"subcontractor": cert.SubcontractorName,
			"project":       cert.ProjectName,
		})}, nil
	})
}

// ReviewResult carries the verdict alongside the updated record so a
// deficiency always reaches the caller with its full issue list.
type ReviewResult struct {
	Certificate *domain.Certificate
	Verdict     domain.ComplianceVerdict
}

// Review runs validation against freshly resolved obligations and either
// approves the certificate or parks it in deficiency_pending. Approval
// triggers hold-harmless template generation inside the same transition;
// if rendering exhausts its retries the approval still commits, with the
// hold-harmless machine in the visible generation_failed state.
func (s *Service) Review(ctx context.Context, id uuid.UUID, role domain.Role) (*ReviewResult, error) {
	res := &ReviewResult{}
	err := s.transitionInto(ctx, id, &res.Certificate, func(cert *domain.Certificate) ([]ports.Event, error) {
		set, err := s.resolver.Resolve(cert.StateCode, cert.ProgramID, cert.Trades)
		if err != nil {
			return nil, err
		}
		verdict := s.validator.Validate(cert.Coverage, set, cert.AdditionalInsureds)
		res.Verdict = verdict
		cert.Obligations = set.Obligations

		if !verdict.Passed {
			if err := domain.CertificateMachine.Step(cert.Status, domain.StatusDeficiencyPending, role); err != nil {
				return nil, err
			}
			cert.Status = domain.StatusDeficiencyPending
			return []ports.Event{ports.NewEvent(ports.EventDeficiencyFound, domain.RoleBroker, cert.ID, map[string]any{
				"subcontractor": cert.SubcontractorName,
				"project":       cert.ProjectName,
				"issues":        verdict.Issues,
				"warnings":      verdict.Warnings,
			})}, nil
		}

		if err := domain.CertificateMachine.Step(cert.Status, domain.StatusApproved, role); err != nil {
			return nil, err
		}
		cert.Status = domain.StatusApproved
		events := []ports.Event{ports.NewEvent(ports.EventCertificateApproved, domain.RoleSubcontractor, cert.ID, map[string]any{
			"subcontractor": cert.SubcontractorName,
			"project":       cert.ProjectName,
			"warnings":      verdict.Warnings,
		})}

		// the single cross-machine edge: approval fires template generation
		if cert.HoldHarmlessStatus == domain.HHNone || cert.HoldHarmlessStatus == domain.HHGenerationFailed {
			events = append(events, s.generateHoldHarmless(ctx, cert))
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// generateHoldHarmless renders and stores the template with bounded retries.
// It advances the hold-harmless machine to pending_signature on success or
// generation_failed on exhaustion, and returns the matching event. The
// certificate is never left approved with a silently absent artifact.
func (s *Service) generateHoldHarmless(ctx context.Context, cert *domain.Certificate) ports.Event {
	var url string
	backoff := retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		data, err := s.renderer.RenderHoldHarmless(ctx, cert)
		if err != nil {
			return retry.RetryableError(err)
		}
		u, err := s.files.Store(ctx, fmt.Sprintf("hold-harmless-%s.pdf", cert.ID), data)
		if err != nil {
			return retry.RetryableError(err)
		}
		url = u
		return nil
	})
	if err != nil {
		s.log.Error("hold-harmless generation failed", "certificate_id", cert.ID, "error", err)
		if stepErr := domain.HoldHarmlessMachine.Step(cert.HoldHarmlessStatus, domain.HHGenerationFailed, domain.RoleSystem); stepErr == nil {
			cert.HoldHarmlessStatus = domain.HHGenerationFailed
		}
		return ports.NewEvent(ports.EventHHGenerationFailed, domain.RoleAdmin, cert.ID, map[string]any{
			"error": err.Error(),
		})
	}
	cert.HoldHarmlessStatus = domain.HHPendingSignature
	cert.HoldHarmlessFileURL = url
	return ports.NewEvent(ports.EventHHReadyForSignature, domain.RoleSubcontractor, cert.ID, map[string]any{
		"document_url": url,
	})
}

// RetryHoldHarmless re-runs template generation from generation_failed.
func (s *Service) RetryHoldHarmless(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Certificate, error) {
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if err := domain.HoldHarmlessMachine.Step(cert.HoldHarmlessStatus, domain.HHPendingSignature, role); err != nil {
			return nil, err
		}
		event := s.generateHoldHarmless(ctx, cert)
		if event.Type == ports.EventHHGenerationFailed {
			return nil, fmt.Errorf("hold-harmless generation failed again for %s", cert.ID)
		}
		return []ports.Event{event}, nil
	})
}

// SignHoldHarmless records the subcontractor signature and advances the
// agreement to awaiting the general contractor countersignature.
func (s *Service) SignHoldHarmless(ctx context.Context, id uuid.UUID, role domain.Role, signatureRef string) (*domain.Certificate, error) {
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if err := domain.HoldHarmlessMachine.Step(cert.HoldHarmlessStatus, domain.HHSignedBySub, role); err != nil {
			return nil, err
		}
		cert.HoldHarmlessStatus = domain.HHSignedBySub
		cert.SubSignatureRef = signatureRef
		if err := domain.HoldHarmlessMachine.Step(cert.HoldHarmlessStatus, domain.HHPendingGCSignature, domain.RoleSystem); err != nil {
			return nil, err
		}
		cert.HoldHarmlessStatus = domain.HHPendingGCSignature
		return []ports.Event{ports.NewEvent(ports.EventHHReadyForCountersign, domain.RoleGeneralContractor, cert.ID, map[string]any{
			"subcontractor": cert.SubcontractorName,
			"project":       cert.ProjectName,
			"document_url":  cert.HoldHarmlessFileURL,
		})}, nil
	})
}

// CountersignHoldHarmless records the general contractor countersignature
// and closes the agreement. Attempted while the subcontractor has not yet
// signed, the edge fails with WrongStateError.
func (s *Service) CountersignHoldHarmless(ctx context.Context, id uuid.UUID, role domain.Role, signatureRef string) (*domain.Certificate, error) {
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if err := domain.HoldHarmlessMachine.Step(cert.HoldHarmlessStatus, domain.HHSigned, role); err != nil {
			return nil, err
		}
		cert.HoldHarmlessStatus = domain.HHSigned
		cert.GCSignatureRef = signatureRef
		return []ports.Event{ports.NewEvent(ports.EventHHFullyExecuted, domain.RoleAdmin, cert.ID, map[string]any{
			"subcontractor": cert.SubcontractorName,
			"project":       cert.ProjectName,
		})}, nil
	})
}

// ReassignTrades recomputes obligations for a new trade list. The coverage
// approval status is deliberately untouched: returning an approved
// certificate to review is a separate human decision (RequestReReview).
func (s *Service) ReassignTrades(ctx context.Context, id uuid.UUID, role domain.Role, trades []string) (*domain.Certificate, error) {
	if role != domain.RoleAdmin {
		return nil, &domain.UnauthorizedActorError{Role: role, Machine: "certificate", Attempted: "reassign_trades"}
	}
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if cert.HoldHarmlessStatus == domain.HHSigned {
			return nil, domain.ErrCertificateFinal
		}
		set, err := s.resolver.Resolve(cert.StateCode, cert.ProgramID, trades)
		if err != nil {
			return nil, err
		}
		cert.Trades = trades
		cert.Obligations = set.Obligations
		return []ports.Event{ports.NewEvent(ports.EventObligationsAssigned, domain.RoleBroker, cert.ID, map[string]any{
			"subcontractor": cert.SubcontractorName,
			"project":       cert.ProjectName,
			"trades":        trades,
			"winning_tier":  set.WinningTier,
			"obligations":   set.Obligations,
		})}, nil
	})
}

// RequestReReview is the explicit admin edge returning an approved
// certificate to review, e.g. after a trade reassignment.
func (s *Service) RequestReReview(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Certificate, error) {
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		if cert.Status == domain.StatusApproved && cert.HoldHarmlessStatus == domain.HHSigned {
			return nil, domain.ErrCertificateFinal
		}
		if err := domain.CertificateMachine.Step(cert.Status, domain.StatusUnderAdminReview, role); err != nil {
			return nil, err
		}
		if cert.Status != domain.StatusApproved {
			// the re-review edge exists only out of approved; other states
			// reach review through upload/resubmission
			return nil, &domain.WrongStateError{Machine: "certificate", Current: string(cert.Status), Attempted: string(domain.StatusUnderAdminReview)}
		}
		cert.Status = domain.StatusUnderAdminReview
		return nil, nil
	})
}

// RegenerateDocument renders a fresh human-readable COI artifact. No status
// effect; admins use it to reissue paperwork.
func (s *Service) RegenerateDocument(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Certificate, error) {
	if role != domain.RoleAdmin {
		return nil, &domain.UnauthorizedActorError{Role: role, Machine: "certificate", Attempted: "regenerate_document"}
	}
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		data, err := s.renderer.RenderCertificate(ctx, cert)
		if err != nil {
			return nil, fmt.Errorf("render certificate: %w", err)
		}
		url, err := s.files.Store(ctx, fmt.Sprintf("coi-%s.pdf", cert.ID), data)
		if err != nil {
			return nil, fmt.Errorf("store certificate: %w", err)
		}
		cert.GeneratedCOIURL = url
		return nil, nil
	})
}

// Archive flags the record; certificates are never deleted.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.Certificate, error) {
	if role != domain.RoleAdmin {
		return nil, &domain.UnauthorizedActorError{Role: role, Machine: "certificate", Attempted: "archive"}
	}
	return s.transition(ctx, id, func(cert *domain.Certificate) ([]ports.Event, error) {
		cert.Archived = true
		return nil, nil
	})
}

// transition loads the certificate under its per-key lock, applies fn, and
// persists the result with the optimistic version check. A stale version is
// surfaced as WrongStateError against the freshly read state, per the error
// taxonomy: the caller must re-fetch and decide.
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(*domain.Certificate) ([]ports.Event, error)) (*domain.Certificate, error) {
	var out *domain.Certificate
	if err := s.transitionInto(ctx, id, &out, fn); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) transitionInto(ctx context.Context, id uuid.UUID, out **domain.Certificate, fn func(*domain.Certificate) ([]ports.Event, error)) error {
	lock := s.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	cert, err := s.certs.Get(ctx, id)
	if err != nil {
		return err
	}
	*out = cert
	if cert.Archived {
		return domain.ErrArchived
	}
	events, err := fn(cert)
	if err != nil {
		return err
	}
	cert.UpdatedAt = time.Now().UTC()
	if err := s.certs.Update(ctx, cert, events); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			fresh, readErr := s.certs.Get(ctx, id)
			if readErr == nil {
				*out = fresh
				return &domain.WrongStateError{Machine: "certificate", Current: string(fresh.Status), Attempted: string(cert.Status)}
			}
		}
		return err
	}
	return nil
}
