package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("**1500** points per month\n\n- priority builds\n- private repos")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>1500</strong>")
	assert.Contains(t, out, "<li>priority builds</li>")
}

func TestRenderer_StripsScripts(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestRenderer_Empty(t *testing.T) {
	out, err := NewRenderer().Render("")
	require.NoError(t, err)
	assert.Empty(t, out)
}
