package posthoc

import (
	"math"
	"sort"

	"goposthoc/domain/core"
)

// ============================================================================
// PROCEDURES
// ============================================================================

// Procedure names a pairwise comparison procedure
type Procedure string

const (
	ProcConover         Procedure = "conover"
	ProcDunn            Procedure = "dunn"
	ProcNemenyi         Procedure = "nemenyi"
	ProcMannWhitney     Procedure = "mannwhitney"
	ProcWilcoxon        Procedure = "wilcoxon"
	ProcVanWaerden      Procedure = "vanwaerden"
	ProcTTest           Procedure = "ttest"
	ProcScheffe         Procedure = "scheffe"
	ProcTukey           Procedure = "tukey"
	ProcTamhane         Procedure = "tamhane"
	ProcTukeyHSD        Procedure = "tukey_hsd"
	ProcNemenyiFriedman Procedure = "nemenyi_friedman"
	ProcConoverFriedman Procedure = "conover_friedman"
	ProcMillerFriedman  Procedure = "miller_friedman"
	ProcSiegelFriedman  Procedure = "siegel_friedman"
	ProcDurbin          Procedure = "durbin"
	ProcQuade           Procedure = "quade"
)

// AdjustMethod is a multiple-comparison correction
type AdjustMethod string

const (
	AdjustNone       AdjustMethod = "none"
	AdjustBonferroni AdjustMethod = "bonferroni"
	AdjustSidak      AdjustMethod = "sidak"
	AdjustHolmSidak  AdjustMethod = "holm-sidak"
	AdjustHolm       AdjustMethod = "holm"
	AdjustHochberg   AdjustMethod = "simes-hochberg"
	AdjustHommel     AdjustMethod = "hommel"
	AdjustFDRBH      AdjustMethod = "fdr_bh"
	AdjustFDRBY      AdjustMethod = "fdr_by"
	AdjustFDRTSBH    AdjustMethod = "fdr_tsbh"
	AdjustFDRTSBKY   AdjustMethod = "fdr_tsbky"

	// AdjustSingleStep is only meaningful for Conover-Friedman, where it
	// switches the reference distribution to the studentized range.
	AdjustSingleStep AdjustMethod = "single-step"
)

// Distribution choices for Nemenyi and Quade
const (
	DistTukey  = "tukey"
	DistChi    = "chi"
	DistT      = "t"
	DistNormal = "normal"
)

// Alternative hypotheses for Mann-Whitney
const (
	AltTwoSided = "two-sided"
	AltLess     = "less"
	AltGreater  = "greater"
)

// Zero-difference handling for Wilcoxon
const (
	ZeroWilcox = "wilcox"
	ZeroPratt  = "pratt"
	ZeroZsplit = "zsplit"
)

// Options carries every knob a procedure may read. Procedures ignore the
// fields they do not use.
type Options struct {
	PAdjust       AdjustMethod `json:"p_adjust"`
	Sort          bool         `json:"sort"`
	EqualVar      bool         `json:"equal_var"`
	Alpha         float64      `json:"alpha"`
	Dist          string       `json:"dist,omitempty"`
	UseContinuity bool         `json:"use_continuity"`
	Alternative   string       `json:"alternative,omitempty"`
	ZeroMethod    string       `json:"zero_method,omitempty"`
	Correction    bool         `json:"correction"`
	Welch         bool         `json:"welch"`
}

// DefaultOptions returns the conventional defaults
func DefaultOptions() Options {
	return Options{
		PAdjust:       AdjustNone,
		EqualVar:      true,
		Alpha:         0.05,
		UseContinuity: true,
		Alternative:   AltTwoSided,
		ZeroMethod:    ZeroWilcox,
		Welch:         true,
	}
}

// ============================================================================
// INPUT SHAPES
// ============================================================================

// Groups is the independent-samples input: one sample per label
type Groups struct {
	Labels  []string    `json:"labels"`
	Samples [][]float64 `json:"samples"`
}

// K returns the number of groups
func (g Groups) K() int { return len(g.Labels) }

// N returns the total number of observations
func (g Groups) N() int {
	n := 0
	for _, s := range g.Samples {
		n += len(s)
	}
	return n
}

// Pooled concatenates all samples in group order
func (g Groups) Pooled() []float64 {
	out := make([]float64, 0, g.N())
	for _, s := range g.Samples {
		out = append(out, s...)
	}
	return out
}

// Sorted returns a copy with labels in lexical order
func (g Groups) Sorted() Groups {
	idx := make([]int, len(g.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return g.Labels[idx[a]] < g.Labels[idx[b]] })
	out := Groups{Labels: make([]string, len(idx)), Samples: make([][]float64, len(idx))}
	for i, j := range idx {
		out.Labels[i] = g.Labels[j]
		out.Samples[i] = g.Samples[j]
	}
	return out
}

// FromObservations groups values by their label, keeping first-seen order
func FromObservations(values []float64, labels []string) Groups {
	var g Groups
	pos := map[string]int{}
	for i, v := range values {
		j, ok := pos[labels[i]]
		if !ok {
			j = len(g.Labels)
			pos[labels[i]] = j
			g.Labels = append(g.Labels, labels[i])
			g.Samples = append(g.Samples, nil)
		}
		g.Samples[j] = append(g.Samples[j], v)
	}
	return g
}

// BlockDesign is the blocked input: rows are blocks, columns treatments.
// NaN marks a cell that was not observed (incomplete designs only).
type BlockDesign struct {
	Treatments []string    `json:"treatments"`
	Blocks     []string    `json:"blocks,omitempty"`
	Values     [][]float64 `json:"values"`
}

// Dims returns the number of blocks and treatments
func (b BlockDesign) Dims() (blocks, treatments int) {
	return len(b.Values), len(b.Treatments)
}

// HasMissing reports whether any cell is NaN
func (b BlockDesign) HasMissing() bool {
	for _, row := range b.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Sorted returns a copy with treatment columns in lexical order
func (b BlockDesign) Sorted() BlockDesign {
	idx := make([]int, len(b.Treatments))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool { return b.Treatments[idx[x]] < b.Treatments[idx[y]] })
	out := BlockDesign{Treatments: make([]string, len(idx)), Blocks: b.Blocks, Values: make([][]float64, len(b.Values))}
	for i, j := range idx {
		out.Treatments[i] = b.Treatments[j]
	}
	for r, row := range b.Values {
		out.Values[r] = make([]float64, len(idx))
		for i, j := range idx {
			if j < len(row) {
				out.Values[r][i] = row[j]
			}
		}
	}
	return out
}

// ============================================================================
// OUTPUT
// ============================================================================

// Matrix is a labelled square matrix of pairwise p-values or decisions.
// The diagonal is always -1.
type Matrix struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// NewMatrix allocates a k×k matrix with -1 on the diagonal and 0 elsewhere
func NewMatrix(labels []string) Matrix {
	k := len(labels)
	m := Matrix{Labels: append([]string(nil), labels...), Values: make([][]float64, k)}
	for i := range m.Values {
		m.Values[i] = make([]float64, k)
		m.Values[i][i] = -1
	}
	return m
}

// SetPair writes v into (i, j) and (j, i)
func (m Matrix) SetPair(i, j int, v float64) {
	m.Values[i][j] = v
	m.Values[j][i] = v
}

// Result is the envelope returned by the service layer
type Result struct {
	RunID       core.RunID     `json:"run_id"`
	Procedure   Procedure      `json:"procedure"`
	Matrix      Matrix         `json:"matrix"`
	Options     Options        `json:"options"`
	Fingerprint core.Hash      `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}
