package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"coitrack/internal/domain"
)

// DefaultLookAheadDays is the expiration warning window.
const DefaultLookAheadDays = 30

// Service validates certificate coverage against a resolved obligation set.
// It is a pure function of its inputs plus the injected clock: no global
// state is consulted, so identical inputs under a fixed clock always yield
// identical verdicts.
type Service struct {
	clock     clockwork.Clock
	lookAhead time.Duration
}

func New(clock clockwork.Clock, lookAheadDays int) *Service {
	if lookAheadDays <= 0 {
		lookAheadDays = DefaultLookAheadDays
	}
	return &Service{clock: clock, lookAhead: time.Duration(lookAheadDays) * 24 * time.Hour}
}

// Validate produces the compliance verdict for a candidate certificate.
// Required obligations that are missing or under limit are issues; optional
// ones are warnings. Structural checks (additional insureds, follow-form,
// waiver of subrogation, expiration) run independently of tier outcome.
func (s *Service) Validate(coverage domain.CertificateCoverage, set domain.ResolvedObligationSet, additionalInsureds []string) domain.ComplianceVerdict {
	var v domain.ComplianceVerdict

	for _, o := range set.Obligations {
		s.checkObligation(&v, coverage, o)
	}
	s.checkAdditionalInsureds(&v, coverage, additionalInsureds)
	s.checkFollowForm(&v, coverage)
	s.checkWaivers(&v, coverage, set)
	s.checkExpirations(&v, coverage)

	v.Passed = len(v.Issues) == 0
	return v
}

func (s *Service) checkObligation(v *domain.ComplianceVerdict, coverage domain.CertificateCoverage, o domain.Obligation) {
	policy := coverage.Policy(o.Type)
	if policy == nil {
		add(v, o.Required, domain.Finding{
			Type:     o.Type,
			Code:     domain.CodeMissingCoverage,
			Message:  fmt.Sprintf("%s coverage is not on the certificate (minimum %s, per %s)", o.Type, money(o.MinLimit), o.Source),
			Required: o.MinLimit,
		})
		return
	}
	if o.MinLimit.IsPositive() && policy.EachOccurrence.LessThan(o.MinLimit) {
		add(v, o.Required, domain.Finding{
			Type:     o.Type,
			Code:     domain.CodeInsufficientLimit,
			Message:  fmt.Sprintf("%s each-occurrence limit %s is below the %s minimum from %s", o.Type, money(policy.EachOccurrence), money(o.MinLimit), o.Source),
			Required: o.MinLimit,
			Observed: policy.EachOccurrence,
		})
	}
}

func (s *Service) checkAdditionalInsureds(v *domain.ComplianceVerdict, coverage domain.CertificateCoverage, additionalInsureds []string) {
	gl := coverage.Policy(domain.GeneralLiability)
	if gl == nil {
		return // missing GL is already an issue when obligated
	}
	named := make(map[string]bool, len(coverage.AdditionalInsureds))
	for _, n := range coverage.AdditionalInsureds {
		named[strings.ToLower(strings.TrimSpace(n))] = true
	}
	for _, want := range additionalInsureds {
		if !named[strings.ToLower(strings.TrimSpace(want))] {
			v.Issues = append(v.Issues, domain.Finding{
				Type:    domain.GeneralLiability,
				Code:    domain.CodeMissingAddlInsured,
				Message: fmt.Sprintf("general liability policy does not name %q as additional insured", want),
			})
		}
	}
}

func (s *Service) checkFollowForm(v *domain.ComplianceVerdict, coverage domain.CertificateCoverage) {
	umb := coverage.Policy(domain.Umbrella)
	if umb != nil && !umb.FollowForm {
		v.Issues = append(v.Issues, domain.Finding{
			Type:    domain.Umbrella,
			Code:    domain.CodeUmbrellaNotFollowForm,
			Message: "umbrella coverage is present but not marked follow-form",
		})
	}
}

func (s *Service) checkWaivers(v *domain.ComplianceVerdict, coverage domain.CertificateCoverage, set domain.ResolvedObligationSet) {
	required := make(map[domain.InsuranceType]bool)
	for _, o := range set.Obligations {
		if o.Required {
			required[o.Type] = true
		}
	}
	for _, t := range []domain.InsuranceType{domain.GeneralLiability, domain.Umbrella, domain.WorkersComp} {
		if !required[t] {
			continue
		}
		policy := coverage.Policy(t)
		if policy != nil && !policy.WaiverOfSubrogation {
			v.Issues = append(v.Issues, domain.Finding{
				Type:    t,
				Code:    domain.CodeMissingWaiver,
				Message: fmt.Sprintf("%s policy lacks a waiver of subrogation", t),
			})
		}
	}
}

func (s *Service) checkExpirations(v *domain.ComplianceVerdict, coverage domain.CertificateCoverage) {
	now := s.clock.Now()
	for _, t := range domain.PolicyOrder {
		policy := coverage.Policy(t)
		if policy == nil || policy.ExpirationDate.IsZero() {
			continue
		}
		switch {
		case policy.ExpirationDate.Before(now):
			v.Issues = append(v.Issues, domain.Finding{
				Type:    t,
				Code:    domain.CodePolicyExpired,
				Message: fmt.Sprintf("%s policy expired %s", t, policy.ExpirationDate.Format("2006-01-02")),
			})
		case policy.ExpirationDate.Before(now.Add(s.lookAhead)):
			v.Warnings = append(v.Warnings, domain.Finding{
				Type:    t,
				Code:    domain.CodePolicyExpiring,
				Message: fmt.Sprintf("%s policy expires %s, inside the renewal window", t, policy.ExpirationDate.Format("2006-01-02")),
			})
		}
	}
}

func add(v *domain.ComplianceVerdict, required bool, f domain.Finding) {
	if required {
		v.Issues = append(v.Issues, f)
	} else {
		v.Warnings = append(v.Warnings, f)
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(0)
}
