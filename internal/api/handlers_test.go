package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goposthoc/adapters/report"
	"goposthoc/app"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/config"
	"goposthoc/internal/errors"
	"goposthoc/internal/logging"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	svc := app.NewPosthocService(config.PosthocConfig{
		PAdjust:     "none",
		Alpha:       0.05,
		EqualVar:    true,
		NemenyiDist: posthoc.DistTukey,
		QuadeDist:   posthoc.DistT,
	}, config.OutlierConfig{Simulations: 1000, Seed: 42})
	return NewServer(svc, report.NewRenderer(), logging.New(logging.LevelError, "Server"))
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

var exerciseGroups = gin.H{
	"labels":  []string{"1", "2", "3"},
	"samples": [][]float64{{2.9, 3.0, 2.5, 2.6, 3.2}, {3.8, 2.7, 4.0, 2.4}, {2.8, 3.4, 3.7, 2.2, 2.0}},
}

// ==================== Routing ====================

func TestHealthz(t *testing.T) {
	w := do(t, newTestServer(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProcedures(t *testing.T) {
	w := do(t, newTestServer(), http.MethodGet, "/v1/procedures", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Procedures []struct {
			Name        string `json:"name"`
			Input       string `json:"input"`
			DefaultDist string `json:"default_dist"`
		} `json:"procedures"`
		Adjustments []string `json:"adjustments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Procedures, 17)
	assert.Contains(t, body.Adjustments, "holm")
	assert.Contains(t, body.Adjustments, "fdr_bh")

	dists := map[string]string{}
	for _, p := range body.Procedures {
		dists[p.Name] = p.DefaultDist
	}
	assert.Equal(t, "tukey", dists["nemenyi"])
	assert.Equal(t, "t", dists["quade"])
	assert.Empty(t, dists["dunn"])
}

// ==================== Post-hoc runs ====================

func TestRunGroups(t *testing.T) {
	w := do(t, newTestServer(), http.MethodPost, "/v1/posthoc/dunn", gin.H{
		"groups":  exerciseGroups,
		"options": gin.H{"p_adjust": "holm"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res posthoc.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, posthoc.ProcDunn, res.Procedure)
	assert.Equal(t, posthoc.AdjustHolm, res.Options.PAdjust)
	require.Len(t, res.Matrix.Values, 3)
	for i := range res.Matrix.Values {
		assert.Equal(t, -1.0, res.Matrix.Values[i][i])
		for j := range res.Matrix.Values {
			assert.Equal(t, res.Matrix.Values[i][j], res.Matrix.Values[j][i])
		}
	}
}

func TestRunBlocksWithMissingCells(t *testing.T) {
	// balanced incomplete design: 7 blocks, 7 treatments, 3 per block
	one := 1.0
	two := 2.0
	three := 3.0
	rows := [][]*float64{
		{&two, &three, nil, &one, nil, nil, nil},
		{nil, &three, &one, nil, &two, nil, nil},
		{nil, nil, &one, &two, nil, &three, nil},
		{nil, nil, nil, &one, &two, nil, &three},
		{&three, nil, nil, nil, &one, &two, nil},
		{nil, &one, nil, nil, nil, &two, &three},
		{&three, nil, &two, nil, nil, nil, &one},
	}
	w := do(t, newTestServer(), http.MethodPost, "/v1/posthoc/durbin", gin.H{
		"blocks": gin.H{
			"treatments": []string{"a", "b", "c", "d", "e", "f", "g"},
			"values":     rows,
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res posthoc.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Matrix.Labels, 7)
}

func TestRunMarkdownReport(t *testing.T) {
	w := do(t, newTestServer(), http.MethodPost, "/v1/posthoc/conover?format=markdown", gin.H{
		"groups": exerciseGroups,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "conover")
	assert.Contains(t, w.Body.String(), "|")
}

func TestRunErrors(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown procedure", "/v1/posthoc/bogus", gin.H{"groups": exerciseGroups}, http.StatusNotFound, errors.CodeUnknownProcedure},
		{"unknown adjustment", "/v1/posthoc/dunn", gin.H{"groups": exerciseGroups, "options": gin.H{"p_adjust": "magic"}}, http.StatusBadRequest, errors.CodeUnknownAdjustment},
		{"no input", "/v1/posthoc/dunn", gin.H{}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"wrong input kind", "/v1/posthoc/quade", gin.H{"groups": exerciseGroups}, http.StatusBadRequest, errors.CodeInvalidInput},
		{"single group", "/v1/posthoc/dunn", gin.H{"groups": gin.H{"labels": []string{"a"}, "samples": [][]float64{{1, 2}}}}, http.StatusUnprocessableEntity, errors.CodeInsufficientData},
		{"bad format", "/v1/posthoc/dunn?format=pdf", gin.H{"groups": exerciseGroups}, http.StatusBadRequest, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

// ==================== Sign and outliers ====================

func TestSign(t *testing.T) {
	w := do(t, newTestServer(), http.MethodPost, "/v1/sign", gin.H{
		"matrix": gin.H{
			"labels": []string{"a", "b", "c"},
			"values": [][]float64{{-1, 0.00119, 0.0004}, {0.00119, -1, 0.0808}, {0.0004, 0.0808, -1}},
		},
		"upper": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res app.SignResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, [][]float64{{-1, 1, 1}, {1, -1, 0}, {1, 0, -1}}, res.Signs.Values)
	assert.Equal(t, [][]string{{"-", "", ""}, {"**", "-", ""}, {"***", "NS", "-"}}, res.Table)
}

func TestOutliers(t *testing.T) {
	w := do(t, newTestServer(), http.MethodPost, "/v1/outliers", gin.H{
		"method": "iqr",
		"values": []float64{4, 5, 6, 10, 12, 4, 3, 1, 2, 3, 23, 5, 3},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"kept":[4,5,6,10,4,3,1,2,3,5,3],"outliers":[12,23],"outlier_indices":[4,10]}`, w.Body.String())
}

// ==================== Error mapping ====================

func TestRespondErrorMapsCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPosthocHandler(nil, nil, logging.New(logging.LevelError, "PosthocHandler"))

	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{errors.UnknownAdjustment("bogus"), http.StatusBadRequest, errors.CodeUnknownAdjustment, ""},
		{errors.InsufficientData("too few"), http.StatusUnprocessableEntity, errors.CodeInsufficientData, "too few"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, errors.CodeInternalError, "internal error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/test", nil)
		h.respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body["code"])
		if tc.msg != "" {
			assert.Contains(t, body["error"], tc.msg)
		}
		assert.NotContains(t, body["error"], "disk on fire")
	}
}
