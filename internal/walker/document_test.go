package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decisionPage = `<html>
<head><title>DRN-4049400</title><script>trackPage()</script></head>
<body>
<header><nav><a href="/">Home</a></nav></header>
<div class="breadcrumbs"><a href="/">Home</a> / Decisions / Payday loans</div>
<main>
  <h1>Decision DRN-4049400</h1>
  <time datetime="2024-03-12">12 March 2024</time>
  <p><strong>Product:</strong> Payday loan</p>
  <p>Mr C complains that the lender gave him loans he could not afford to repay.
  The lending was unaffordable from the outset and no affordability check was done.</p>
  <p>My final decision is that the complaint is upheld.</p>
</main>
<footer><p>Footer boilerplate that must not appear in the body.</p></footer>
</body>
</html>`

func TestParseDocument(t *testing.T) {
	categories := []string{"credit-cards", "payday-loans"}

	raw := ParseDocument(decisionPage, "https://example.org/ombudsman-decisions/DRN-4049400", categories)
	require.NotNil(t, raw)

	assert.Equal(t, "DRN-4049400", raw.Reference)
	assert.Equal(t, "https://example.org/ombudsman-decisions/DRN-4049400", raw.URL)
	assert.Equal(t, "12 March 2024", raw.Date)
	assert.Equal(t, "payday-loans", raw.ProductType)
	assert.Equal(t, "upheld", raw.Outcome)
	assert.False(t, raw.RetrievedAt.IsZero())

	assert.Contains(t, raw.Body, "could not afford")
	assert.NotContains(t, raw.Body, "Footer boilerplate")
	assert.NotContains(t, raw.Body, "trackPage")
}

func TestParseDocumentReferenceFromBody(t *testing.T) {
	html := `<html><body><main>
		<p>Decision reference DRN4049401 concerns a credit card dispute.</p>
	</main></body></html>`

	raw := ParseDocument(html, "https://example.org/decision/latest", nil)
	require.NotNil(t, raw)
	assert.Equal(t, "DRN-4049401", raw.Reference)
}

func TestParseDocumentWithoutReference(t *testing.T) {
	html := `<html><body><main><p>A page about something else entirely.</p></main></body></html>`
	assert.Nil(t, ParseDocument(html, "https://example.org/about", nil))
}

func TestParseDocumentBodyFallsBackToWholePage(t *testing.T) {
	html := `<html><body>
		<p>DRN-5000001</p>
		<p>Plain markup with no main or article container but plenty of text to keep.</p>
	</body></html>`

	raw := ParseDocument(html, "https://example.org/x", nil)
	require.NotNil(t, raw)
	assert.Contains(t, raw.Body, "plenty of text to keep")
}

func TestProductLabel(t *testing.T) {
	html := `<html><body><main>
		<p>DRN-6000001</p>
		<dl><dt>Product:</dt><dd>Hire purchase</dd></dl>
	</main></body></html>`

	raw := ParseDocument(html, "https://example.org/x", nil)
	require.NotNil(t, raw)
	assert.Equal(t, "Hire purchase", raw.ProductCategory)
}
