package posthoc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goposthoc/domain/posthoc"
	apperrors "goposthoc/internal/errors"
)

func TestNemenyiFriedman(t *testing.T) {
	m, err := NemenyiFriedman(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)

	want := [][]float64{
		{-1, 1.000000, 0.841451, 0.917774, 0.917774, 0.214783, 0.997690},
		{1.000000, -1, 0.883301, 0.944909, 0.944909, 0.259754, 0.999177},
		{0.841451, 0.883301, -1, 0.999996, 0.999996, 0.944909, 0.988895},
		{0.917774, 0.944909, 0.999996, -1, 1.000000, 0.883301, 0.997690},
		{0.917774, 0.944909, 0.999996, 1.000000, -1, 0.883301, 0.997690},
		{0.214783, 0.259754, 0.944909, 0.883301, 0.883301, -1, 0.551194},
		{0.997690, 0.999177, 0.988895, 0.997690, 0.997690, 0.551194, -1},
	}
	for i := range want {
		assert.InDeltaSlice(t, want[i], m.Values[i], 1e-4, "row %d", i)
	}

	// cells below the 0.9 table cap agree with the interpolated psturng values
	assert.InDelta(t, 0.21477876, m.Values[0][5], 1e-4)
	assert.InDelta(t, 0.25967965, m.Values[1][5], 1e-4)
}

func TestMillerFriedman(t *testing.T) {
	m, err := MillerFriedman(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)
	assert.InDeltaSlice(t, []float64{-1, 1.0, 0.9411963, 0.9724396, 0.9724396, 0.4717981, 0.9993864}, m.Values[0], 1e-6)
}

func TestSiegelFriedman(t *testing.T) {
	m, err := SiegelFriedman(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)
	assert.InDeltaSlice(t, []float64{-1, 0.92471904, 0.18587673, 0.25683926, 0.25683926, 0.01816302, 0.57075039}, m.Values[0], 1e-6)
}

func TestConoverFriedman(t *testing.T) {
	m, err := ConoverFriedman(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)
	assert.InDeltaSlice(t, []float64{-1, 0.914751, 0.151803, 0.214093, 0.214093, 0.018160, 0.524230}, m.Values[0], 1e-5)

	ss, err := ConoverFriedman(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = posthoc.AdjustSingleStep }))
	require.NoError(t, err)
	assertWellFormed(t, ss)
	assert.InDeltaSlice(t, []float64{-1, 1.0, 0.726381, 0.846674, 0.846674, 0.090137, 0.994824}, ss.Values[0], 1e-4)
}

func TestConoverFriedmanMatchesDurbinOnCompleteDesign(t *testing.T) {
	for _, method := range []posthoc.AdjustMethod{posthoc.AdjustNone, posthoc.AdjustHolm} {
		o := opts(func(o *posthoc.Options) { o.PAdjust = method })
		cf, err := ConoverFriedman(blockData(), o)
		require.NoError(t, err)
		du, err := Durbin(blockData(), o)
		require.NoError(t, err)
		for i := range cf.Values {
			assert.InDeltaSlice(t, du.Values[i], cf.Values[i], 1e-12, "%s row %d", method, i)
		}
	}

	holm, err := ConoverFriedman(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = posthoc.AdjustHolm }))
	require.NoError(t, err)
	assert.InDelta(t, 0.381364, holm.Values[0][5], 1e-5)
	assert.InDelta(t, 0.444549, holm.Values[1][5], 1e-5)
}

func TestSingleStepRejectedElsewhere(t *testing.T) {
	_, err := SiegelFriedman(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = posthoc.AdjustSingleStep }))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))

	_, err = NemenyiFriedman(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = posthoc.AdjustSingleStep }))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))
}

func TestBlockRejectUnknownAdjustment(t *testing.T) {
	for name, fn := range map[string]BlockFunc{
		"nemenyi_friedman": NemenyiFriedman,
		"conover_friedman": ConoverFriedman,
		"miller_friedman":  MillerFriedman,
		"quade":            Quade,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := fn(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = "bogus" }))
			assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownAdjustment))
		})
	}
}

func TestQuade(t *testing.T) {
	m, err := Quade(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)
	assert.InDeltaSlice(t, []float64{-1, 0.67651326, 0.15432143, 0.17954686, 0.2081421, 0.02267043, 0.2081421}, m.Values[0], 1e-6)

	normal, err := Quade(blockData(), opts(func(o *posthoc.Options) { o.Dist = posthoc.DistNormal }))
	require.NoError(t, err)
	assertWellFormed(t, normal)
	assert.InDeltaSlice(t, []float64{-1, 0.820203, 0.419020, 0.448682, 0.479500, 0.164845, 0.479500}, normal.Values[0], 1e-5)
}

func TestDurbinCompleteDesign(t *testing.T) {
	raw, err := Durbin(blockData(), opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, raw)
	assert.InDeltaSlice(t, []float64{-1, 0.914751, 0.151803, 0.214093, 0.214093, 0.018160, 0.524230}, raw.Values[0], 1e-5)

	holm, err := Durbin(blockData(), opts(func(o *posthoc.Options) { o.PAdjust = posthoc.AdjustHolm }))
	require.NoError(t, err)
	assert.InDelta(t, 0.381364, holm.Values[0][5], 1e-5)
	assert.InDelta(t, 0.444549, holm.Values[1][5], 1e-5)
	assert.Equal(t, 1.0, holm.Values[0][1])
}

func TestDurbinIncompleteDesign(t *testing.T) {
	nan := math.NaN()
	// seven blocks of three treatments, each treatment scored three times
	d := posthoc.BlockDesign{
		Treatments: []string{"a", "b", "c", "d", "e", "f", "g"},
		Values: [][]float64{
			{2, 5, nan, 4, nan, nan, nan},
			{nan, 3, 7, nan, 1, nan, nan},
			{nan, nan, 9, 4, nan, 6, nan},
			{nan, nan, nan, 2, 8, nan, 5},
			{6, nan, nan, nan, 7, 3, nan},
			{nan, 4, nan, nan, nan, 1, 8},
			{2, nan, 9, nan, nan, nan, 6},
		},
	}
	m, err := Durbin(d, opts(nil))
	require.NoError(t, err)
	assertWellFormed(t, m)
	assert.InDeltaSlice(t, []float64{-1, 0.109983, 0.017183, 1.0, 0.109983, 1.0, 0.109983}, m.Values[0], 1e-5)
}

func TestDurbinUnbalanced(t *testing.T) {
	nan := math.NaN()
	d := posthoc.BlockDesign{
		Treatments: []string{"a", "b", "c"},
		Values: [][]float64{
			{1, 2, nan},
			{1, 2, 3},
		},
	}
	_, err := Durbin(d, opts(nil))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeShapeMismatch))
}

func TestBlockShapeErrors(t *testing.T) {
	ragged := posthoc.BlockDesign{
		Treatments: []string{"a", "b", "c"},
		Values:     [][]float64{{1, 2, 3}, {1, 2}},
	}
	_, err := NemenyiFriedman(ragged, opts(nil))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeShapeMismatch))

	missing := posthoc.BlockDesign{
		Treatments: []string{"a", "b"},
		Values:     [][]float64{{1, math.NaN()}, {1, 2}},
	}
	_, err = Quade(missing, opts(nil))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeShapeMismatch))

	single := posthoc.BlockDesign{Treatments: []string{"a", "b"}, Values: [][]float64{{1, 2}}}
	_, err = MillerFriedman(single, opts(nil))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientData))
}

func TestBlockAllTied(t *testing.T) {
	d := posthoc.BlockDesign{
		Treatments: []string{"a", "b", "c"},
		Values:     [][]float64{{4, 4, 4}, {2, 2, 2}, {7, 7, 7}},
	}
	for name, fn := range map[string]BlockFunc{
		"nemenyi_friedman": NemenyiFriedman,
		"conover_friedman": ConoverFriedman,
		"miller_friedman":  MillerFriedman,
		"siegel_friedman":  SiegelFriedman,
		"durbin":           Durbin,
		"quade":            Quade,
	} {
		t.Run(name, func(t *testing.T) {
			m, err := fn(d, opts(nil))
			require.NoError(t, err)
			assertWellFormed(t, m)
			assert.Equal(t, []float64{1, 1, 1}, upper(m))
		})
	}
}

func TestRegistry(t *testing.T) {
	fn, ok := LookupIndependent(posthoc.ProcConover)
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = LookupIndependent(posthoc.ProcDurbin)
	assert.False(t, ok)

	bfn, ok := LookupBlock(posthoc.ProcDurbin)
	require.True(t, ok)
	require.NotNil(t, bfn)

	procs := Procedures()
	assert.Len(t, procs, 17)
	for i := 1; i < len(procs); i++ {
		assert.Less(t, procs[i-1].Name, procs[i].Name)
	}
}
