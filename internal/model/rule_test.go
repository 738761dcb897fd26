package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	for _, s := range []string{"not_applicable", "secondary", "primary", "mandatory"} {
		tier, err := ParseTier(s)
		require.NoError(t, err)
		assert.Equal(t, s, tier.String())
	}

	_, err := ParseTier("critical")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestTierOrdering(t *testing.T) {
	assert.Less(t, TierNotApplicable, TierSecondary)
	assert.Less(t, TierSecondary, TierPrimary)
	assert.Less(t, TierPrimary, TierMandatory)

	assert.Equal(t, TierMandatory, MaxTier(TierSecondary, TierMandatory))
	assert.Equal(t, TierPrimary, MaxTier(TierPrimary, TierSecondary))
	assert.Equal(t, TierPrimary, MaxTier(TierPrimary, TierPrimary))
}

func TestEffectTargetTier(t *testing.T) {
	assert.Equal(t, TierPrimary, EffectEscalateToPrimary.TargetTier())
	assert.Equal(t, TierMandatory, EffectEscalateToMandatory.TargetTier())
	assert.Equal(t, TierNotApplicable, EffectNotApplicable.TargetTier())
	assert.Equal(t, TierNotApplicable, EffectAddReviewFlag.TargetTier())
}
