package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(SetOutput(&buf))
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)

	PrintTitle("niftitostl")
	PrintHeader("Labels")
	PrintStep("Generating stls")
	PrintItem("5.stl")
	PrintSuccess("done")
	PrintError("boom")
	PrintWarning("careful")
	PrintInfo("fyi")
	PrintKeyValue("Triangles", "1,024")

	text := buf.String()
	for _, want := range []string{
		"niftitostl", "Labels", "Generating stls", "5.stl", "done",
		"boom", "careful", "fyi", "Triangles:", "1,024",
	} {
		assert.Contains(t, text, want)
	}
}

func TestSetOutputRestores(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	assert.Same(t, &buf, Writer())
	restore()
	assert.Equal(t, os.Stdout, Writer())
}

func TestPrintYAML(t *testing.T) {
	buf := capture(t)
	src := "smoothing:\n  iterations: 30\n"

	require.NoError(t, PrintYAML(src, false))
	assert.Equal(t, src, buf.String())

	buf.Reset()
	require.NoError(t, PrintYAML(src, true))
	assert.Contains(t, buf.String(), "iterations")
	assert.Contains(t, buf.String(), "\x1b[", "expected terminal escape codes")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.2 kB", FormatBytes(1234))
	assert.Equal(t, "0 B", FormatBytes(-5))
	assert.Equal(t, "12,345", FormatCount(12345))
}
