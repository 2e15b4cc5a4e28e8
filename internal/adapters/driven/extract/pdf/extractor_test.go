package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Metadata(t *testing.T) {
	e := New()

	assert.Equal(t, "pdf", e.Name())
	assert.Equal(t, []string{".pdf"}, e.Extensions())
}

func TestExtract_NotAPDF(t *testing.T) {
	result, err := New().Extract(context.Background(), []byte("plain text pretending to be a pdf"), "fake.pdf")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "fake.pdf")
	assert.Empty(t, result.Pages)
}

func TestExtract_TruncatedPDF(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	result, err := New().Extract(context.Background(), data, "broken.pdf")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "line one\nline two", cleanText("  line one  \r\nline two\t\r\n\n"))
}
