package api

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"goposthoc/adapters/stats/matrix"
	"goposthoc/app"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/errors"
	"goposthoc/internal/logging"
	"goposthoc/ports"
)

// PosthocHandler serves the post-hoc endpoints
type PosthocHandler struct {
	svc      *app.PosthocService
	renderer ports.ReportRenderer
	log      *logging.Logger
}

// NewPosthocHandler creates a handler
func NewPosthocHandler(svc *app.PosthocService, renderer ports.ReportRenderer, logger *logging.Logger) *PosthocHandler {
	return &PosthocHandler{svc: svc, renderer: renderer, log: logger}
}

// RunRequest carries either independent groups or a block design. Missing
// block cells are sent as null.
type RunRequest struct {
	Groups  *posthoc.Groups     `json:"groups,omitempty"`
	Blocks  *BlockPayload       `json:"blocks,omitempty"`
	Options app.OptionOverrides `json:"options"`
}

// BlockPayload is the wire form of a block design
type BlockPayload struct {
	Treatments []string     `json:"treatments"`
	Blocks     []string     `json:"blocks,omitempty"`
	Values     [][]*float64 `json:"values"`
}

func (b BlockPayload) design() posthoc.BlockDesign {
	values := make([][]float64, len(b.Values))
	for i, row := range b.Values {
		values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				values[i][j] = math.NaN()
				continue
			}
			values[i][j] = *v
		}
	}
	return posthoc.BlockDesign{Treatments: b.Treatments, Blocks: b.Blocks, Values: values}
}

// SignRequest asks for the significance views of a p-value matrix
type SignRequest struct {
	Matrix posthoc.Matrix `json:"matrix"`
	Alpha  *float64       `json:"alpha,omitempty"`
	Lower  *bool          `json:"lower,omitempty"`
	Upper  *bool          `json:"upper,omitempty"`
}

// HandleProcedures lists the registered procedures and adjustment methods.
// default_dist names the distribution used when a run omits "dist"
// (nemenyi defaults to tukey, quade to t, unless reconfigured).
func (h *PosthocHandler) HandleProcedures() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"procedures":  h.svc.Procedures(),
			"adjustments": h.svc.Adjustments(),
		})
	}
}

// HandleRun runs the procedure named in the path. ?format=markdown or
// ?format=html renders a report instead of JSON.
func (h *PosthocHandler) HandleRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := posthoc.Procedure(c.Param("procedure"))

		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}

		var (
			res *posthoc.Result
			err error
		)
		switch {
		case req.Groups != nil && req.Blocks != nil:
			err = errors.InvalidInput("send either groups or blocks, not both")
		case req.Blocks != nil:
			res, err = h.svc.RunBlock(c.Request.Context(), name, req.Blocks.design(), req.Options)
		case req.Groups != nil:
			res, err = h.svc.RunIndependent(c.Request.Context(), name, *req.Groups, req.Options)
		default:
			err = errors.InvalidInput("request needs groups or blocks")
		}
		if err != nil {
			h.respondError(c, err)
			return
		}

		switch c.Query("format") {
		case "", "json":
			c.JSON(http.StatusOK, res)
		case "markdown", "html":
			h.renderReport(c, res)
		default:
			h.respondError(c, errors.InvalidInput("unknown format %q", c.Query("format")))
		}
	}
}

func (h *PosthocHandler) renderReport(c *gin.Context, res *posthoc.Result) {
	var signs [][]string
	if res.Procedure != posthoc.ProcTukeyHSD {
		view, err := h.svc.Sign(res.Matrix, &res.Options.Alpha, matrix.DefaultTableOptions())
		if err != nil {
			h.respondError(c, err)
			return
		}
		signs = view.Table
	}
	title := string(res.Procedure) + " (" + string(res.Options.PAdjust) + ")"
	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", h.renderer.HTML(title, res.Matrix, signs))
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(h.renderer.Markdown(title, res.Matrix, signs)))
}

// HandleSign returns the sign array and sign table of a p-value matrix
func (h *PosthocHandler) HandleSign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
		opts := matrix.DefaultTableOptions()
		if req.Lower != nil {
			opts.Lower = *req.Lower
		}
		if req.Upper != nil {
			opts.Upper = *req.Upper
		}
		res, err := h.svc.Sign(req.Matrix, req.Alpha, opts)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// HandleOutliers runs an outlier filter
func (h *PosthocHandler) HandleOutliers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req app.OutlierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
		res, err := h.svc.DetectOutliers(c.Request.Context(), req)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *PosthocHandler) respondError(c *gin.Context, err error) {
	if !errors.IsAppError(err) {
		h.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		err = errors.InternalError("internal error")
	}
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		h.log.Debug("%s %s: %s %v", c.Request.Method, c.Request.URL.Path, code, err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeUnknownProcedure:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeUnknownAdjustment:
		return http.StatusBadRequest
	case errors.CodeInsufficientData, errors.CodeShapeMismatch:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
