package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

var raw = []float64{0.01, 0.04, 0.03, 0.005, 0.2}

func TestApplyMethods(t *testing.T) {
	tests := []struct {
		method posthoc.AdjustMethod
		want   []float64
	}{
		{posthoc.AdjustNone, raw},
		{posthoc.AdjustBonferroni, []float64{0.05, 0.2, 0.15, 0.025, 1}},
		{posthoc.AdjustSidak, []float64{0.0490099501, 0.1846273024, 0.1412659743, 0.0247512469, 0.67232}},
		{posthoc.AdjustHolmSidak, []float64{0.03940399, 0.087327, 0.087327, 0.0247512469, 0.2}},
		{posthoc.AdjustHolm, []float64{0.04, 0.09, 0.09, 0.025, 0.2}},
		{posthoc.AdjustHochberg, []float64{0.04, 0.08, 0.08, 0.025, 0.2}},
		{posthoc.AdjustHommel, []float64{0.04, 0.08, 0.06, 0.025, 0.2}},
		{posthoc.AdjustFDRBH, []float64{0.025, 0.05, 0.05, 0.025, 0.2}},
		{posthoc.AdjustFDRBY, []float64{0.0570833333, 0.1141666667, 0.1141666667, 0.0570833333, 0.4566666667}},
		{posthoc.AdjustFDRTSBH, []float64{0.005, 0.01, 0.01, 0.005, 0.04}},
		{posthoc.AdjustFDRTSBKY, []float64{0.01575, 0.0315, 0.0315, 0.01575, 0.126}},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			got, err := Apply(raw, tt.method, 0.05)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
		})
	}
}

func TestApplyNeverBelowRaw(t *testing.T) {
	for _, m := range []posthoc.AdjustMethod{
		posthoc.AdjustBonferroni, posthoc.AdjustSidak, posthoc.AdjustHolmSidak, posthoc.AdjustHolm,
	} {
		got, err := Apply(raw, m, 0.05)
		require.NoError(t, err)
		for i := range raw {
			assert.GreaterOrEqual(t, got[i], raw[i], "method %s index %d", m, i)
			assert.LessOrEqual(t, got[i], 1.0)
		}
	}
}

func TestApplySingleValueUnchanged(t *testing.T) {
	for _, m := range Methods() {
		got, err := Apply([]float64{0.03}, m, 0.05)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.03}, got)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := []float64{0.3, 0.01, 0.02}
	_, err := Apply(in, posthoc.AdjustHolm, 0.05)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.01, 0.02}, in)
}

func TestParse(t *testing.T) {
	m, err := Parse("Holm")
	require.NoError(t, err)
	assert.Equal(t, posthoc.AdjustHolm, m)

	m, err = Parse("hochberg")
	require.NoError(t, err)
	assert.Equal(t, posthoc.AdjustHochberg, m)

	m, err = Parse("")
	require.NoError(t, err)
	assert.Equal(t, posthoc.AdjustNone, m)

	_, err = Parse("bogus")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))
}

func TestApplyUnknownMethod(t *testing.T) {
	_, err := Apply(raw, "bogus", 0.05)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))

	_, err = Apply(raw, posthoc.AdjustSingleStep, 0.05)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))
}
