package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goposthoc/domain/posthoc"
)

func sample() posthoc.Matrix {
	return posthoc.Matrix{
		Labels: []string{"rest", "walking"},
		Values: [][]float64{{-1, 0.0113126}, {0.0113126, -1}},
	}
}

func TestMarkdown(t *testing.T) {
	md := NewRenderer().Markdown("Conover", sample(), nil)

	assert.True(t, strings.HasPrefix(md, "## Conover\n\n"))
	assert.Contains(t, md, "|   | rest | walking |")
	assert.Contains(t, md, "| **rest** | - | 0.01131 |")
	assert.Contains(t, md, "| **walking** | 0.01131 | - |")
}

func TestMarkdownWithSigns(t *testing.T) {
	signs := [][]string{{"-", "*"}, {"*", "-"}}
	md := NewRenderer().Markdown("", sample(), signs)

	assert.Contains(t, md, `0.01131 \*`)
	assert.NotContains(t, md, "##")
}

func TestHTML(t *testing.T) {
	out := string(NewRenderer().HTML("Conover", sample(), nil))

	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<title>Conover</title>")
	assert.Contains(t, out, "0.01131")
	assert.Contains(t, out, "<strong>rest</strong>")
}
