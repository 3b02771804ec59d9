package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Leave register",
		Headers: []string{"Student", "Status"},
		Rows: []map[string]string{
			{"Student": "Asha, K", "Status": "APPROVED"},
			{"Student": "Ravi"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Status", lines[0])
	assert.Equal(t, `"Asha, K",APPROVED`, lines[1])
	assert.Equal(t, "Ravi,", lines[2])
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	assert.Error(t, err)
	_, err = Render(FormatPDF, Dataset{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
