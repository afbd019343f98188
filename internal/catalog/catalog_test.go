package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coitrack/internal/domain"
)

func TestParseRanking(t *testing.T) {
	r := ParseRanking("Foundation,Roofing,Exterior=Structural,MEP")

	assert.Greater(t, r.Priority("Foundation"), r.Priority("Roofing"))
	assert.Greater(t, r.Priority("Roofing"), r.Priority("Exterior"))
	assert.Equal(t, r.Priority("Exterior"), r.Priority("Structural"), "= joins tiers sharing a rank")
	assert.Greater(t, r.Priority("Exterior"), r.Priority("MEP"))
	assert.Equal(t, 0, r.Priority("Unranked"), "unranked tiers sort below every ranked one")
	assert.Equal(t, r.Priority("foundation"), r.Priority("Foundation"), "case-insensitive")
}

func TestCatalog_TradeLookupIsCaseInsensitive(t *testing.T) {
	c := SeedCatalog()

	trade, ok := c.Trade("roofing")
	require.True(t, ok)
	assert.Equal(t, "Roofing", trade.Name)

	_, ok = c.Trade("Welding")
	assert.False(t, ok)
}

func TestCatalog_TierFor(t *testing.T) {
	c := SeedCatalog()

	tier, ok := c.TierFor(SeedProgramID, "Carpentry")
	require.True(t, ok)
	assert.Equal(t, "Interior", tier.Name)

	_, ok = c.TierFor("no-such-program", "Carpentry")
	assert.False(t, ok)
}

func TestCatalog_JurisdictionFor(t *testing.T) {
	c := SeedCatalog()

	// wildcard plus the Roofing-specific floor
	reqs := c.JurisdictionFor("NY", []string{"Roofing"})
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.WorkersComp, reqs[0].Entry.Type)
	assert.Equal(t, domain.GeneralLiability, reqs[1].Entry.Type)

	// wildcard only for a non-roofing trade
	reqs = c.JurisdictionFor("NY", []string{"Carpentry"})
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.JurisdictionWildcard, reqs[0].Trade)

	assert.Empty(t, c.JurisdictionFor("TX", []string{"Roofing"}))
}

func TestSeedCatalog_TradeFlags(t *testing.T) {
	c := SeedCatalog()

	db, ok := c.Trade("Design-Build")
	require.True(t, ok)
	assert.True(t, db.RequiresProfessional)

	env, ok := c.Trade("Environmental Remediation")
	require.True(t, ok)
	assert.True(t, env.RequiresPollution)
}
