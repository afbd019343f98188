package certificates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coitrack/internal/catalog"
	"coitrack/internal/domain"
	"coitrack/internal/logger"
	"coitrack/internal/ports"
	"coitrack/internal/services/compliance"
	"coitrack/internal/services/requirements"
)

// fakeRepo is an in-memory CertificateRepository with the same optimistic
// version semantics as the Postgres adapter.
type fakeRepo struct {
	mu     sync.Mutex
	certs  map[uuid.UUID]domain.Certificate
	events []ports.Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{certs: map[uuid.UUID]domain.Certificate{}}
}

func (r *fakeRepo) Create(_ context.Context, cert *domain.Certificate, events []ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certs[cert.ID] = *cert
	r.events = append(r.events, events...)
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cert, nil
}

func (r *fakeRepo) Update(_ context.Context, cert *domain.Certificate, events []ports.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.certs[cert.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != cert.Version {
		return domain.ErrVersionConflict
	}
	cert.Version++
	r.certs[cert.ID] = *cert
	r.events = append(r.events, events...)
	return nil
}

func (r *fakeRepo) ListPending(_ context.Context) ([]*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Certificate
	for _, cert := range r.certs {
		if cert.Status != domain.StatusApproved && !cert.Archived {
			c := cert
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type fakeRenderer struct {
	mu        sync.Mutex
	hhRenders int
	coiRender int
	failHH    bool
}

func (f *fakeRenderer) RenderCertificate(context.Context, *domain.Certificate) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coiRender++
	return []byte("coi"), nil
}

func (f *fakeRenderer) RenderHoldHarmless(context.Context, *domain.Certificate) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hhRenders++
	if f.failHH {
		return nil, errors.New("template engine unavailable")
	}
	return []byte("hold harmless"), nil
}

func (f *fakeRenderer) holdHarmlessRenders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hhRenders
}

type fakeFiles struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeFiles) Store(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return "https://files.test/" + name, nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	renderer *fakeRenderer
	files    *fakeFiles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	renderer := &fakeRenderer{}
	files := &fakeFiles{}
	resolver := requirements.New(catalog.SeedCatalog())
	validator := compliance.New(clockwork.NewFakeClockAt(time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)), compliance.DefaultLookAheadDays)
	svc := New(repo, resolver, validator, renderer, files, logger.NewNop())
	return &fixture{svc: svc, repo: repo, renderer: renderer, files: files}
}

func (f *fixture) create(t *testing.T) *domain.Certificate {
	t.Helper()
	cert, err := f.svc.Create(context.Background(), CreateParams{
		ProjectID:          uuid.New(),
		SubcontractorID:    uuid.New(),
		ProjectName:        "Riverside Tower",
		SubcontractorName:  "Apex Carpentry LLC",
		GeneralContractor:  "Hudson Development LP",
		StateCode:          "TX",
		ProgramID:          catalog.SeedProgramID,
		Trades:             []string{"Carpentry"},
		AdditionalInsureds: []string{"Hudson Development LP"},
	})
	require.NoError(t, err)
	return cert
}

func passingCoverage() domain.CertificateCoverage {
	expiry := time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
	return domain.CertificateCoverage{
		Policies: map[domain.InsuranceType]*domain.PolicyCoverage{
			domain.GeneralLiability: {
				Carrier:             "Acme Mutual",
				PolicyNumber:        "GL-100",
				EachOccurrence:      decimal.NewFromInt(1_000_000),
				ExpirationDate:      expiry,
				WaiverOfSubrogation: true,
			},
			domain.WorkersComp: {
				Carrier:             "Acme Mutual",
				PolicyNumber:        "WC-200",
				EachOccurrence:      decimal.NewFromInt(500_000),
				ExpirationDate:      expiry,
				WaiverOfSubrogation: true,
			},
		},
		AdditionalInsureds: []string{"Hudson Development LP"},
	}
}

func deficientCoverage() domain.CertificateCoverage {
	c := passingCoverage()
	c.Policies[domain.GeneralLiability].EachOccurrence = decimal.NewFromInt(250_000)
	return c
}

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)
	assert.Equal(t, domain.StatusAwaitingBrokerUpload, cert.Status)
	assert.Equal(t, domain.HHNone, cert.HoldHarmlessStatus)
	assert.NotEmpty(t, cert.Obligations)

	cert, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "acord-25.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderAdminReview, cert.Status)
	assert.Equal(t, "https://files.test/acord-25.pdf", cert.COIFileURL)

	res, err := f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, res.Verdict.Passed)
	assert.Equal(t, domain.StatusApproved, res.Certificate.Status)
	assert.Equal(t, domain.HHPendingSignature, res.Certificate.HoldHarmlessStatus)
	assert.NotEmpty(t, res.Certificate.HoldHarmlessFileURL)

	cert, err = f.svc.SignHoldHarmless(ctx, cert.ID, domain.RoleSubcontractor, "sig-sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HHPendingGCSignature, cert.HoldHarmlessStatus)
	assert.Equal(t, "sig-sub-1", cert.SubSignatureRef)

	cert, err = f.svc.CountersignHoldHarmless(ctx, cert.ID, domain.RoleGeneralContractor, "sig-gc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HHSigned, cert.HoldHarmlessStatus)
	assert.Equal(t, "sig-gc-1", cert.GCSignatureRef)

	assert.Equal(t, []string{
		ports.EventObligationsAssigned,
		ports.EventCertificateSubmitted,
		ports.EventCertificateApproved,
		ports.EventHHReadyForSignature,
		ports.EventHHReadyForCountersign,
		ports.EventHHFullyExecuted,
	}, f.repo.eventTypes())
}

func TestReview_DeficiencyLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)

	_, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, deficientCoverage(), "", nil)
	require.NoError(t, err)

	res, err := f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, res.Verdict.Passed)
	assert.Equal(t, domain.StatusDeficiencyPending, res.Certificate.Status)
	require.NotEmpty(t, res.Verdict.Issues)
	assert.Equal(t, domain.CodeInsufficientLimit, res.Verdict.Issues[0].Code)
	assert.Equal(t, domain.HHNone, res.Certificate.HoldHarmlessStatus)
	assert.Zero(t, f.renderer.holdHarmlessRenders())

	// broker fixes the paperwork and resubmits through the same upload edge
	_, err = f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)
	res, err = f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, res.Verdict.Passed)
	assert.Equal(t, domain.StatusApproved, res.Certificate.Status)
}

func TestReview_ConcurrentApprovalRendersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)
	_, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var wrong *domain.WrongStateError
		require.ErrorAs(t, err, &wrong)
		assert.Equal(t, string(domain.StatusApproved), wrong.Current)
		conflict++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
	assert.Equal(t, 1, f.renderer.holdHarmlessRenders(), "the template must be generated exactly once")
}

func TestCountersign_BeforeSubcontractorSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)
	_, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)

	_, err = f.svc.CountersignHoldHarmless(ctx, cert.ID, domain.RoleGeneralContractor, "sig-gc-1")
	var wrong *domain.WrongStateError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, string(domain.HHPendingSignature), wrong.Current)
}

func TestGenerationFailure_ApprovalStillCommits(t *testing.T) {
	f := newFixture(t)
	f.renderer.failHH = true
	ctx := context.Background()
	cert := f.create(t)
	_, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)

	res, err := f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Certificate.Status)
	assert.Equal(t, domain.HHGenerationFailed, res.Certificate.HoldHarmlessStatus)
	assert.Contains(t, f.repo.eventTypes(), ports.EventHHGenerationFailed)

	// admin retries once the template engine recovers
	f.renderer.failHH = false
	cert, err = f.svc.RetryHoldHarmless(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.HHPendingSignature, cert.HoldHarmlessStatus)
	assert.NotEmpty(t, cert.HoldHarmlessFileURL)
}

func TestReassignTrades_DoesNotTouchStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)
	_, err := f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)

	cert, err = f.svc.ReassignTrades(ctx, cert.ID, domain.RoleAdmin, []string{"Roofing"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, cert.Status, "reassignment never moves the coverage machine")
	assert.Equal(t, []string{"Roofing"}, cert.Trades)

	var hasUmbrella bool
	for _, o := range cert.Obligations {
		if o.Type == domain.Umbrella {
			hasUmbrella = true
		}
	}
	assert.True(t, hasUmbrella, "obligations must reflect the new trade list")

	// returning to review is the separate explicit edge
	cert, err = f.svc.RequestReReview(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderAdminReview, cert.Status)
}

func TestReassignTrades_RoleAndFinality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)

	_, err := f.svc.ReassignTrades(ctx, cert.ID, domain.RoleBroker, []string{"Roofing"})
	var unauthorized *domain.UnauthorizedActorError
	require.ErrorAs(t, err, &unauthorized)

	_, err = f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	_, err = f.svc.SignHoldHarmless(ctx, cert.ID, domain.RoleSubcontractor, "sig-sub-1")
	require.NoError(t, err)
	_, err = f.svc.CountersignHoldHarmless(ctx, cert.ID, domain.RoleGeneralContractor, "sig-gc-1")
	require.NoError(t, err)

	_, err = f.svc.ReassignTrades(ctx, cert.ID, domain.RoleAdmin, []string{"Roofing"})
	assert.ErrorIs(t, err, domain.ErrCertificateFinal)
	_, err = f.svc.RequestReReview(ctx, cert.ID, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrCertificateFinal)
}

func TestRequestReReview_OnlyFromApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)

	_, err := f.svc.RequestReReview(ctx, cert.ID, domain.RoleAdmin)
	var wrong *domain.WrongStateError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, string(domain.StatusAwaitingBrokerUpload), wrong.Current)
}

func TestRegenerateDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)

	_, err := f.svc.RegenerateDocument(ctx, cert.ID, domain.RoleBroker)
	var unauthorized *domain.UnauthorizedActorError
	require.ErrorAs(t, err, &unauthorized)

	cert, err = f.svc.RegenerateDocument(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.GeneratedCOIURL)
}

func TestArchive_BlocksFurtherTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cert := f.create(t)

	cert, err := f.svc.Archive(ctx, cert.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, cert.Archived)

	_, err = f.svc.SubmitUpload(ctx, cert.ID, domain.RoleBroker, passingCoverage(), "", nil)
	assert.ErrorIs(t, err, domain.ErrArchived)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreate_UnknownTrade(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateParams{
		ProjectID:       uuid.New(),
		SubcontractorID: uuid.New(),
		StateCode:       "TX",
		ProgramID:       catalog.SeedProgramID,
		Trades:          []string{"Underwater Basket Weaving"},
	})
	var unknown *domain.UnknownTradeError
	require.ErrorAs(t, err, &unknown)
}
