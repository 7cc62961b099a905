package ui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m05s", FormatDuration(125*time.Second))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a b c", Truncate("a\n b\t c", 10))
	assert.Equal(t, "análi…", Truncate("análisis completo", 6))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, &buf)
	defer SetOutput(os.Stdout, os.Stderr)
	Init(true, false)

	Table([]string{"ID", "LABEL"}, [][]string{{"summary", "Article Summary"}})

	assert.Equal(t, "ID       LABEL\n--       -----\nsummary  Article Summary\n", buf.String())
}
