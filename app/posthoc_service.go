package app

import (
	"context"
	"encoding/json"
	"time"

	"goposthoc/adapters/stats/adjust"
	"goposthoc/adapters/stats/matrix"
	"goposthoc/adapters/stats/outliers"
	statsposthoc "goposthoc/adapters/stats/posthoc"
	"goposthoc/domain/core"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/config"
	"goposthoc/internal/errors"
	"goposthoc/internal/logging"
)

// PosthocService validates requests, applies configured defaults and
// dispatches to the registered procedures
type PosthocService struct {
	defaults   config.PosthocConfig
	outlierCfg config.OutlierConfig
	log        *logging.Logger
}

// OptionOverrides carries the options a caller set explicitly. Nil fields
// fall back to the configured defaults.
type OptionOverrides struct {
	PAdjust       *string  `json:"p_adjust,omitempty"`
	Sort          *bool    `json:"sort,omitempty"`
	EqualVar      *bool    `json:"equal_var,omitempty"`
	Alpha         *float64 `json:"alpha,omitempty"`
	Dist          *string  `json:"dist,omitempty"`
	UseContinuity *bool    `json:"use_continuity,omitempty"`
	Alternative   *string  `json:"alternative,omitempty"`
	ZeroMethod    *string  `json:"zero_method,omitempty"`
	Correction    *bool    `json:"correction,omitempty"`
	Welch         *bool    `json:"welch,omitempty"`
}

// SignResult holds the significance views of a p-value matrix
type SignResult struct {
	Signs posthoc.Matrix `json:"signs"`
	Table [][]string     `json:"table"`
}

// NewPosthocService creates a post-hoc service
func NewPosthocService(defaults config.PosthocConfig, outlierCfg config.OutlierConfig) *PosthocService {
	return &PosthocService{
		defaults:   defaults,
		outlierCfg: outlierCfg,
		log:        logging.New(logging.LevelInfo, "PosthocService"),
	}
}

// WithLogger replaces the service logger
func (s *PosthocService) WithLogger(l *logging.Logger) *PosthocService {
	s.log = l
	return s
}

// ProcedureInfo is a registered procedure with its configured default
// distribution, empty when the procedure offers no choice
type ProcedureInfo struct {
	statsposthoc.Descriptor
	DefaultDist string `json:"default_dist,omitempty"`
}

// Procedures lists every available procedure
func (s *PosthocService) Procedures() []ProcedureInfo {
	descs := statsposthoc.Procedures()
	out := make([]ProcedureInfo, len(descs))
	for i, d := range descs {
		out[i] = ProcedureInfo{Descriptor: d, DefaultDist: s.defaults.DistFor(d.Name)}
	}
	return out
}

// Adjustments lists the canonical p-value adjustment methods
func (s *PosthocService) Adjustments() []posthoc.AdjustMethod {
	return adjust.Methods()
}

// IsBlockProcedure reports whether name expects a block design
func (s *PosthocService) IsBlockProcedure(name posthoc.Procedure) bool {
	_, ok := statsposthoc.LookupBlock(name)
	return ok
}

// RunIndependent runs a group-input procedure
func (s *PosthocService) RunIndependent(ctx context.Context, name posthoc.Procedure, g posthoc.Groups, overrides OptionOverrides) (*posthoc.Result, error) {
	fn, ok := statsposthoc.LookupIndependent(name)
	if !ok {
		if _, isBlock := statsposthoc.LookupBlock(name); isBlock {
			return nil, errors.InvalidInput("procedure %q expects a block design", name)
		}
		return nil, errors.UnknownProcedure(string(name))
	}
	opts, err := s.resolveOptions(name, overrides)
	if err != nil {
		return nil, err
	}
	s.log.Debug("%s options %s", name, optionsKey(opts))
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "request cancelled")
	}

	fp := core.NewFingerprint().String(string(name)).String(optionsKey(opts))
	for i, label := range g.Labels {
		fp.String(label)
		if i < len(g.Samples) {
			fp.Floats(g.Samples[i])
		}
	}

	start := time.Now()
	m, err := fn(g, opts)
	if err != nil {
		s.log.Warn("%s failed: %v", name, err)
		return nil, err
	}
	s.log.Info("%s compared %d groups (n=%d) in %s", name, g.K(), g.N(), time.Since(start))

	return s.envelope(name, m, opts, fp.Sum()), nil
}

// RunBlock runs a block-design procedure
func (s *PosthocService) RunBlock(ctx context.Context, name posthoc.Procedure, d posthoc.BlockDesign, overrides OptionOverrides) (*posthoc.Result, error) {
	fn, ok := statsposthoc.LookupBlock(name)
	if !ok {
		if _, isGroup := statsposthoc.LookupIndependent(name); isGroup {
			return nil, errors.InvalidInput("procedure %q expects independent groups", name)
		}
		return nil, errors.UnknownProcedure(string(name))
	}
	opts, err := s.resolveOptions(name, overrides)
	if err != nil {
		return nil, err
	}
	s.log.Debug("%s options %s", name, optionsKey(opts))
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "request cancelled")
	}

	fp := core.NewFingerprint().String(string(name)).String(optionsKey(opts))
	for _, t := range d.Treatments {
		fp.String(t)
	}
	for _, row := range d.Values {
		fp.Floats(row)
	}

	start := time.Now()
	m, err := fn(d, opts)
	if err != nil {
		s.log.Warn("%s failed: %v", name, err)
		return nil, err
	}
	blocks, treatments := d.Dims()
	s.log.Info("%s compared %d treatments over %d blocks in %s", name, treatments, blocks, time.Since(start))

	return s.envelope(name, m, opts, fp.Sum()), nil
}

// Sign derives the sign array and sign table of a p-value matrix
func (s *PosthocService) Sign(m posthoc.Matrix, alpha *float64, tableOpts matrix.TableOptions) (*SignResult, error) {
	a := s.defaults.Alpha
	if alpha != nil {
		a = *alpha
	}
	signs, err := matrix.SignArray(m, a)
	if err != nil {
		return nil, err
	}
	table, err := matrix.SignTable(m, tableOpts)
	if err != nil {
		return nil, err
	}
	return &SignResult{Signs: signs, Table: table}, nil
}

// Outlier filter names
const (
	OutlierIQR          = "iqr"
	OutlierGrubbs       = "grubbs"
	OutlierTietjenMoore = "tietjen"
	OutlierGESD         = "gesd"
)

// OutlierRequest selects an outlier filter and its parameters
type OutlierRequest struct {
	Method string    `json:"method"`
	Values []float64 `json:"values"`
	Alpha  *float64  `json:"alpha,omitempty"`
	K      int       `json:"k,omitempty"`
	Coef   float64   `json:"coef,omitempty"`
}

// DetectOutliers runs one of the outlier filters
func (s *PosthocService) DetectOutliers(ctx context.Context, req OutlierRequest) (*outliers.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "request cancelled")
	}
	alpha := s.defaults.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	var res outliers.Result
	var err error
	switch req.Method {
	case OutlierIQR:
		res, err = outliers.IQR(req.Values, req.Coef)
	case OutlierGrubbs:
		res, err = outliers.Grubbs(req.Values, alpha)
	case OutlierTietjenMoore:
		res, err = outliers.TietjenMoore(req.Values, req.K, outliers.TietjenMooreOptions{
			Alpha:       alpha,
			Simulations: s.outlierCfg.Simulations,
			Seed:        s.outlierCfg.Seed,
		})
	case OutlierGESD:
		res, err = outliers.GESD(req.Values, req.K, alpha)
	default:
		return nil, errors.InvalidInput("unknown outlier method %q", req.Method)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("%s flagged %d of %d values", req.Method, len(res.Outliers), len(req.Values))
	return &res, nil
}

func (s *PosthocService) resolveOptions(name posthoc.Procedure, o OptionOverrides) (posthoc.Options, error) {
	opts := s.defaults.Options()
	opts.Dist = s.defaults.DistFor(name)

	if o.PAdjust != nil {
		m, err := adjust.Parse(*o.PAdjust)
		if err != nil {
			return opts, err
		}
		opts.PAdjust = m
	}
	if opts.PAdjust == posthoc.AdjustSingleStep && name != posthoc.ProcConoverFriedman {
		return opts, errors.InvalidInput("single-step adjustment is only available for %s", posthoc.ProcConoverFriedman)
	}
	if o.Sort != nil {
		opts.Sort = *o.Sort
	}
	if o.EqualVar != nil {
		opts.EqualVar = *o.EqualVar
	}
	if o.Alpha != nil {
		if *o.Alpha <= 0 || *o.Alpha >= 1 {
			return opts, errors.InvalidInput("alpha must be in (0, 1), got %v", *o.Alpha)
		}
		opts.Alpha = *o.Alpha
	}
	if o.Dist != nil {
		opts.Dist = *o.Dist
	}
	if o.UseContinuity != nil {
		opts.UseContinuity = *o.UseContinuity
	}
	if o.Alternative != nil {
		opts.Alternative = *o.Alternative
	}
	if o.ZeroMethod != nil {
		opts.ZeroMethod = *o.ZeroMethod
	}
	if o.Correction != nil {
		opts.Correction = *o.Correction
	}
	if o.Welch != nil {
		opts.Welch = *o.Welch
	}
	return opts, nil
}

func (s *PosthocService) envelope(name posthoc.Procedure, m posthoc.Matrix, opts posthoc.Options, fp core.Hash) *posthoc.Result {
	return &posthoc.Result{
		RunID:       core.NewRunID(),
		Procedure:   name,
		Matrix:      m,
		Options:     opts,
		Fingerprint: fp,
		CreatedAt:   core.Now(),
	}
}

// optionsKey serializes options deterministically for fingerprinting
func optionsKey(opts posthoc.Options) string {
	b, _ := json.Marshal(opts)
	return string(b)
}
