package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/printer"
)

func sessionFixture() model.SessionRecord {
	startedAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	endedAt := startedAt.Add(90 * time.Second)
	code := 2
	return model.SessionRecord{
		ID:            "01HZX5G0000000000000000000",
		Operation:     "exec",
		Target:        "4f2c1b0d9e8a7f6c5b4a39281706f5e4d3c2b1a09f8e7d6c5b4a392817063d2e",
		Kind:          model.StreamKindMultiplexed,
		Mode:          model.SessionModeSeparateSinks,
		State:         model.SessionStateFailed,
		Error:         "truncated frame",
		StdoutBytes:   2048,
		StderrBytes:   10,
		DroppedFrames: 1,
		ExitCode:      &code,
		StartedAt:     startedAt,
		EndedAt:       &endedAt,
	}
}

func TestTablePrinterPrintSession(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintSession(sessionFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Kind:       multiplexed")
	assert.Contains(t, out, "Error:      truncated frame")
	assert.Contains(t, out, "Exit code:  2")
	assert.Contains(t, out, "Stdout:     2.0 KB")
	assert.Contains(t, out, "Dropped:    1 frames")
	assert.Contains(t, out, "Duration:   1m30s")
}

func TestTablePrinterPrintHistory(t *testing.T) {
	running := sessionFixture()
	running.ID = "running"
	running.Target = "c1"
	running.State = model.SessionStateRunning
	running.ExitCode = nil
	running.EndedAt = nil

	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintHistory([]model.SessionRecord{sessionFixture(), running})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "4f2c1b0d9e8a ")
	assert.Contains(t, lines[1], "failed")
	assert.Contains(t, lines[2], "running")
	assert.Contains(t, lines[2], " - ")
}

func TestTablePrinterPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintHistory(nil))
	assert.Empty(t, buf.String())
}

func TestJSONPrinterPrintSession(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintSession(sessionFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"kind": "multiplexed"`)
	assert.Contains(t, out, `"stdout": 2048`)
	assert.Contains(t, out, `"exit_code": 2`)
	assert.Contains(t, out, `"ended_at": "2026-01-30T10:01:30Z"`)
}

func TestYAMLPrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewYAMLPrinter(&buf)

	err := p.PrintHistory([]model.SessionRecord{sessionFixture()})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "- id: 01HZX5G0000000000000000000")
	assert.Contains(t, out, "operation: exec")
	assert.Contains(t, out, "exit_code: 2")
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
