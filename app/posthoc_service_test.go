package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goposthoc/adapters/stats/matrix"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/config"
	"goposthoc/internal/errors"
)

func newTestService() *PosthocService {
	return NewPosthocService(config.PosthocConfig{
		PAdjust:     "none",
		Alpha:       0.05,
		EqualVar:    true,
		NemenyiDist: posthoc.DistChi,
		QuadeDist:   posthoc.DistT,
	}, config.OutlierConfig{Simulations: 2000, Seed: 7})
}

func groups() posthoc.Groups {
	return posthoc.Groups{
		Labels:  []string{"a", "b", "c"},
		Samples: [][]float64{{1, 2, 3, 4, 5}, {35, 31, 75, 40, 21}, {10, 6, 9, 6, 1}},
	}
}

func strPtr(s string) *string { return &s }

func TestRunIndependentAppliesOverrides(t *testing.T) {
	svc := newTestService()
	res, err := svc.RunIndependent(context.Background(), posthoc.ProcDunn, groups(), OptionOverrides{PAdjust: strPtr("holm")})
	require.NoError(t, err)

	assert.Equal(t, posthoc.ProcDunn, res.Procedure)
	assert.Equal(t, posthoc.AdjustHolm, res.Options.PAdjust)
	assert.False(t, res.RunID.String() == "")
	assert.Len(t, res.Fingerprint.String(), 64)
	assert.Equal(t, -1.0, res.Matrix.Values[1][1])
}

func TestRunIndependentUsesConfiguredDist(t *testing.T) {
	svc := newTestService()
	res, err := svc.RunIndependent(context.Background(), posthoc.ProcNemenyi, groups(), OptionOverrides{})
	require.NoError(t, err)
	assert.Equal(t, posthoc.DistChi, res.Options.Dist)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	svc := newTestService()
	a, err := svc.RunIndependent(context.Background(), posthoc.ProcConover, groups(), OptionOverrides{})
	require.NoError(t, err)
	b, err := svc.RunIndependent(context.Background(), posthoc.ProcConover, groups(), OptionOverrides{})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Matrix, b.Matrix)
	assert.NotEqual(t, a.RunID, b.RunID)

	c, err := svc.RunIndependent(context.Background(), posthoc.ProcConover, groups(), OptionOverrides{PAdjust: strPtr("bonferroni")})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestRunErrors(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.RunIndependent(ctx, "bogus", groups(), OptionOverrides{})
	assert.Equal(t, errors.CodeUnknownProcedure, errors.GetCode(err))

	_, err = svc.RunIndependent(ctx, posthoc.ProcDurbin, groups(), OptionOverrides{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.RunIndependent(ctx, posthoc.ProcDunn, groups(), OptionOverrides{PAdjust: strPtr("nope")})
	assert.Equal(t, errors.CodeUnknownAdjustment, errors.GetCode(err))

	_, err = svc.RunIndependent(ctx, posthoc.ProcDunn, groups(), OptionOverrides{PAdjust: strPtr("single-step")})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.RunIndependent(cancelled, posthoc.ProcDunn, groups(), OptionOverrides{})
	assert.Error(t, err)
}

func TestRunBlock(t *testing.T) {
	svc := newTestService()
	d := posthoc.BlockDesign{
		Treatments: []string{"x", "y", "z"},
		Values:     [][]float64{{1, 2, 3}, {2, 3, 1}, {1, 3, 2}, {1, 2, 3}},
	}
	res, err := svc.RunBlock(context.Background(), posthoc.ProcConoverFriedman, d, OptionOverrides{PAdjust: strPtr("single-step")})
	require.NoError(t, err)
	assert.Equal(t, posthoc.AdjustSingleStep, res.Options.PAdjust)
	assert.Equal(t, []string{"x", "y", "z"}, res.Matrix.Labels)

	_, err = svc.RunBlock(context.Background(), posthoc.ProcDunn, d, OptionOverrides{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.True(t, svc.IsBlockProcedure(posthoc.ProcQuade))
	assert.False(t, svc.IsBlockProcedure(posthoc.ProcDunn))
}

func TestSign(t *testing.T) {
	svc := newTestService()
	m := posthoc.Matrix{
		Labels: []string{"a", "b"},
		Values: [][]float64{{-1, 0.02}, {0.02, -1}},
	}
	res, err := svc.Sign(m, nil, matrix.DefaultTableOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1, 1}, {1, -1}}, res.Signs.Values)
	assert.Equal(t, [][]string{{"-", "*"}, {"*", "-"}}, res.Table)

	strict := 0.01
	res, err = svc.Sign(m, &strict, matrix.DefaultTableOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Signs.Values[0][1])
}

func TestDetectOutliers(t *testing.T) {
	svc := newTestService()
	res, err := svc.DetectOutliers(context.Background(), OutlierRequest{
		Method: OutlierIQR,
		Values: []float64{4, 5, 6, 10, 12, 4, 3, 1, 2, 3, 23, 5, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 23}, res.Outliers)

	_, err = svc.DetectOutliers(context.Background(), OutlierRequest{Method: "magic"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
