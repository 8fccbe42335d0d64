package billing

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestActiveJobLimit_TierDefaults(t *testing.T) {
	limits := NewLimits(testLogger())

	tests := []struct {
		tier orgs.PlanTier
		want int
	}{
		{orgs.PlanFree, FreeActiveJobLimit},
		{orgs.PlanPro, ProActiveJobLimit},
		{orgs.PlanEnterprise, EnterpriseActiveJobLimit},
		{"", FreeActiveJobLimit},
	}
	for _, tt := range tests {
		org := &orgs.Organization{ExternalID: "org_1", PlanTier: tt.tier}
		assert.Equal(t, tt.want, limits.ActiveJobLimit(org), "tier %q", tt.tier)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active_jobs:\n  org_special: 50\n"), 0644))

	limits := NewLimits(testLogger())
	require.NoError(t, limits.LoadOverrides(path))

	special := &orgs.Organization{ExternalID: "org_special", PlanTier: orgs.PlanFree}
	assert.Equal(t, 50, limits.ActiveJobLimit(special))

	// Organizations without an override keep the tier default.
	other := &orgs.Organization{ExternalID: "org_other", PlanTier: orgs.PlanFree}
	assert.Equal(t, FreeActiveJobLimit, limits.ActiveJobLimit(other))
}

func TestLoadOverrides_ReplacesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active_jobs:\n  org_a: 10\n"), 0644))

	limits := NewLimits(testLogger())
	require.NoError(t, limits.LoadOverrides(path))

	require.NoError(t, os.WriteFile(path, []byte("active_jobs:\n  org_b: 20\n"), 0644))
	require.NoError(t, limits.LoadOverrides(path))

	orgA := &orgs.Organization{ExternalID: "org_a", PlanTier: orgs.PlanFree}
	orgB := &orgs.Organization{ExternalID: "org_b", PlanTier: orgs.PlanFree}
	assert.Equal(t, FreeActiveJobLimit, limits.ActiveJobLimit(orgA))
	assert.Equal(t, 20, limits.ActiveJobLimit(orgB))
}

func TestLoadOverrides_RejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active_jobs:\n  org_a: -1\n"), 0644))

	limits := NewLimits(testLogger())
	assert.Error(t, limits.LoadOverrides(path))
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	limits := NewLimits(testLogger())
	assert.Error(t, limits.LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestPlanLimitError(t *testing.T) {
	err := &PlanLimitError{PlanTier: orgs.PlanFree, Current: 3, Limit: 3}
	assert.True(t, IsPlanLimit(err))
	assert.False(t, IsPlanLimit(assert.AnError))
	assert.Contains(t, err.Error(), "free")
}
