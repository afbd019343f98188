package render

import (
	"context"
	"fmt"
	"strings"

	"coitrack/internal/domain"
)

// TextRenderer produces plain-text artifacts. Real deployments plug in a PDF
// renderer behind ports.DocumentRenderer; the core does not care.
type TextRenderer struct{}

func (TextRenderer) RenderCertificate(ctx context.Context, cert *domain.Certificate) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "CERTIFICATE OF INSURANCE\n\n")
	fmt.Fprintf(&b, "Insured:    %s\n", cert.SubcontractorName)
	fmt.Fprintf(&b, "Project:    %s (%s)\n", cert.ProjectName, cert.StateCode)
	fmt.Fprintf(&b, "Holder:     %s\n", cert.GeneralContractor)
	fmt.Fprintf(&b, "Trades:     %s\n\n", strings.Join(cert.Trades, ", "))
	for _, t := range domain.PolicyOrder {
		p := cert.Coverage.Policy(t)
		if p == nil {
			continue
		}
		fmt.Fprintf(&b, "%-24s %s #%s, each occurrence $%s, expires %s\n",
			t, p.Carrier, p.PolicyNumber, p.EachOccurrence.StringFixed(0), p.ExpirationDate.Format("01/02/2006"))
	}
	return []byte(b.String()), nil
}

func (TextRenderer) RenderHoldHarmless(ctx context.Context, cert *domain.Certificate) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "HOLD HARMLESS AND INDEMNIFICATION AGREEMENT\n\n")
	fmt.Fprintf(&b, "Subcontractor %s agrees to indemnify and hold harmless %s\n", cert.SubcontractorName, cert.GeneralContractor)
	fmt.Fprintf(&b, "and the following additional insureds in connection with work on %s:\n\n", cert.ProjectName)
	for _, name := range cert.AdditionalInsureds {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	b.WriteString("\nSubcontractor signature: ________________\n")
	b.WriteString("General contractor countersignature: ________________\n")
	return []byte(b.String()), nil
}
