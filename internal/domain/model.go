package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Core domain records. API request/response shapes live in the HTTP adapter;
// keep these decoupled from transport.

// InsuranceType identifies a line of coverage on a certificate.
type InsuranceType string

const (
	GeneralLiability      InsuranceType = "general_liability"
	AutoLiability         InsuranceType = "auto_liability"
	Umbrella              InsuranceType = "umbrella"
	WorkersComp           InsuranceType = "workers_comp"
	ProfessionalLiability InsuranceType = "professional_liability"
	PollutionLiability    InsuranceType = "pollution_liability"
)

// PolicyOrder is the fixed iteration order for per-policy checks so that
// verdicts are deterministic.
var PolicyOrder = []InsuranceType{
	GeneralLiability,
	AutoLiability,
	Umbrella,
	WorkersComp,
	ProfessionalLiability,
	PollutionLiability,
}

// Trade is immutable reference data: a craft with its risk placement and any
// coverage lines mandated by the trade itself regardless of tier.
type Trade struct {
	Name                 string
	RequiresProfessional bool
	RequiresPollution    bool
}

// RequirementEntry is one (insurance type, minimum) pair inside a tier or a
// jurisdiction floor. A zero minimum means the coverage must merely be present.
type RequirementEntry struct {
	Type     InsuranceType   `json:"type"`
	MinLimit decimal.Decimal `json:"min_limit"`
	Required bool            `json:"required"`
}

// RequirementTier groups trades of comparable risk within an insurance
// program. A trade belongs to exactly one tier per program.
type RequirementTier struct {
	Name    string
	Trades  []string
	Entries []RequirementEntry
}

// Program is a general contractor's insurance program: the full tier set.
type Program struct {
	ID    string
	Name  string
	Tiers []RequirementTier
}

// JurisdictionWildcard matches every trade.
const JurisdictionWildcard = "*"

// JurisdictionRequirement is a state-mandated coverage floor, keyed by state
// code and either a specific trade or the wildcard "*". Always additive.
type JurisdictionRequirement struct {
	StateCode string
	Trade     string
	Entry     RequirementEntry
}

// Provenance records where an obligation came from.
type Provenance string

const (
	FromProgramTier  Provenance = "program_tier"
	FromJurisdiction Provenance = "jurisdiction"
	FromTradeFlag    Provenance = "trade_flag"
)

// Obligation is one entry of a resolved obligation set.
type Obligation struct {
	Type       InsuranceType   `json:"type"`
	MinLimit   decimal.Decimal `json:"min_limit"`
	Required   bool            `json:"required"`
	Provenance Provenance      `json:"provenance"`
	Source     string          `json:"source"`
}

// ResolvedObligationSet is the resolver output for one (project, trade list)
// pair. Ephemeral: recomputed on demand, snapshotted onto the certificate
// only for display and review.
type ResolvedObligationSet struct {
	ProgramID   string
	StateCode   string
	Trades      []string
	WinningTier string
	Obligations []Obligation
}

// PolicyCoverage is the certificate's data for one line of coverage.
type PolicyCoverage struct {
	Carrier             string          `json:"carrier"`
	PolicyNumber        string          `json:"policy_number"`
	EachOccurrence      decimal.Decimal `json:"each_occurrence"`
	Aggregate           decimal.Decimal `json:"aggregate"`
	EffectiveDate       time.Time       `json:"effective_date"`
	ExpirationDate      time.Time       `json:"expiration_date"`
	AdditionalInsured   bool            `json:"additional_insured"`
	WaiverOfSubrogation bool            `json:"waiver_of_subrogation"`
	FollowForm          bool            `json:"follow_form"`
}

// CertificateCoverage is everything a broker uploads for a certificate.
// AdditionalInsureds are the entities named on the general liability policy.
type CertificateCoverage struct {
	Policies           map[InsuranceType]*PolicyCoverage `json:"policies"`
	AdditionalInsureds []string                          `json:"additional_insureds"`
}

// Policy returns the coverage for a line, or nil.
func (c CertificateCoverage) Policy(t InsuranceType) *PolicyCoverage {
	if c.Policies == nil {
		return nil
	}
	return c.Policies[t]
}

// Certificate is one subcontractor's insurance paperwork for one project
// assignment. Never deleted, only archived.
type Certificate struct {
	ID                 uuid.UUID
	ProjectID          uuid.UUID
	SubcontractorID    uuid.UUID
	ProjectName        string
	SubcontractorName  string
	GeneralContractor  string
	StateCode          string
	ProgramID          string
	Trades             []string
	AdditionalInsureds []string
	Coverage           CertificateCoverage
	Obligations        []Obligation

	Status             CertificateStatus
	HoldHarmlessStatus HoldHarmlessStatus

	COIFileURL          string
	GeneratedCOIURL     string
	HoldHarmlessFileURL string
	SubSignatureRef     string
	GCSignatureRef      string

	Version   int64
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Finding is one validator result entry, blocking or not.
type Finding struct {
	Type     InsuranceType   `json:"type"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Required decimal.Decimal `json:"required"`
	Observed decimal.Decimal `json:"observed"`
}

// Finding codes.
const (
	CodeMissingCoverage       = "missing_coverage"
	CodeInsufficientLimit     = "insufficient_limit"
	CodeMissingAddlInsured    = "missing_additional_insured"
	CodeUmbrellaNotFollowForm = "umbrella_not_follow_form"
	CodeMissingWaiver         = "missing_waiver_of_subrogation"
	CodePolicyExpired         = "policy_expired"
	CodePolicyExpiring        = "policy_expiring"
)

// ComplianceVerdict is the validator output. Warnings never block a pass.
type ComplianceVerdict struct {
	Passed   bool      `json:"passed"`
	Issues   []Finding `json:"issues"`
	Warnings []Finding `json:"warnings"`
}
