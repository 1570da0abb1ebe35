// Package report renders pairwise matrices as markdown and HTML tables.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"goposthoc/domain/posthoc"
)

// Renderer formats matrices. Precision is the number of significant digits
// printed for p-values.
type Renderer struct {
	Precision int
}

// NewRenderer creates a renderer with 4 significant digits
func NewRenderer() *Renderer {
	return &Renderer{Precision: 4}
}

// Markdown renders m as a markdown table. When signs is non-nil its symbols
// are appended to every off-diagonal cell.
func (r *Renderer) Markdown(title string, m posthoc.Matrix, signs [][]string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", title)
	}

	b.WriteString("|   |")
	for _, l := range m.Labels {
		fmt.Fprintf(&b, " %s |", escape(l))
	}
	b.WriteString("\n|---|")
	for range m.Labels {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for i, row := range m.Values {
		label := ""
		if i < len(m.Labels) {
			label = m.Labels[i]
		}
		fmt.Fprintf(&b, "| **%s** |", escape(label))
		for j, v := range row {
			fmt.Fprintf(&b, " %s |", r.cell(i, j, v, signs))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders m as a standalone HTML page
func (r *Renderer) HTML(title string, m posthoc.Matrix, signs [][]string) []byte {
	md := []byte(r.Markdown(title, m, signs))
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(md, p, renderer)
}

func (r *Renderer) cell(i, j int, v float64, signs [][]string) string {
	if i == j {
		return "-"
	}
	s := fmt.Sprintf("%.*g", r.precision(), v)
	if signs != nil && i < len(signs) && j < len(signs[i]) && signs[i][j] != "" {
		s += " " + signs[i][j]
	}
	return escape(s)
}

func (r *Renderer) precision() int {
	if r.Precision <= 0 {
		return 4
	}
	return r.Precision
}

// escape protects characters that carry meaning inside a markdown table cell
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "*", `\*`)
}
