package ports

import (
	"goposthoc/domain/posthoc"
)

// ReportRenderer renders result matrices for humans
type ReportRenderer interface {
	Markdown(title string, m posthoc.Matrix, signs [][]string) string
	HTML(title string, m posthoc.Matrix, signs [][]string) []byte
}
