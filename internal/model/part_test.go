package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePart() PartAttributes {
	return PartAttributes{
		MPN: "GRM155R71C104KA88D",
		Parameters: []Parameter{
			{ParameterID: "voltage_rating", Value: "16V"},
			{ParameterID: "dielectric", Value: "X7R"},
		},
	}
}

func TestPartParameterLookup(t *testing.T) {
	p := samplePart()

	param := p.Parameter("dielectric")
	require.NotNil(t, param)
	assert.Equal(t, "X7R", param.Value)

	assert.Nil(t, p.Parameter("esr"))
}

func TestWithOverridesReplacesValues(t *testing.T) {
	p := samplePart()

	out := p.WithOverrides(map[string]string{"voltage_rating": "50V"})
	assert.Equal(t, "50V", out.Parameter("voltage_rating").Value)

	// The original is untouched.
	assert.Equal(t, "16V", p.Parameter("voltage_rating").Value)
}

func TestWithOverridesAppendsUnknownAttributes(t *testing.T) {
	p := samplePart()

	out := p.WithOverrides(map[string]string{"temperature_range": "-55C to 125C"})
	require.Len(t, out.Parameters, 3)

	param := out.Parameter("temperature_range")
	require.NotNil(t, param)
	assert.Equal(t, "-55C to 125C", param.Value)
}
