package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/mobydemux/internal/model"
)

// JSONPrinter prints session information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a session in the history output (subset of fields).
type listItem struct {
	ID        string    `json:"id" yaml:"id"`
	Operation string    `json:"operation" yaml:"operation"`
	Target    string    `json:"target" yaml:"target"`
	State     string    `json:"state" yaml:"state"`
	ExitCode  *int      `json:"exit_code" yaml:"exit_code"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// sessionOutput represents the full session output.
type sessionOutput struct {
	ID            string        `json:"id" yaml:"id"`
	Operation     string        `json:"operation" yaml:"operation"`
	Target        string        `json:"target" yaml:"target"`
	Kind          string        `json:"kind" yaml:"kind"`
	Mode          string        `json:"mode" yaml:"mode"`
	State         string        `json:"state" yaml:"state"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Bytes         bytesOutput   `json:"bytes" yaml:"bytes"`
	DroppedFrames int64         `json:"dropped_frames" yaml:"dropped_frames"`
	ExitCode      *int          `json:"exit_code" yaml:"exit_code"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	EndedAt       *time.Time    `json:"ended_at" yaml:"ended_at"`
	Duration      time.Duration `json:"duration_ns,omitempty" yaml:"duration_ns,omitempty"`
}

type bytesOutput struct {
	Stdin  int64 `json:"stdin" yaml:"stdin"`
	Stdout int64 `json:"stdout" yaml:"stdout"`
	Stderr int64 `json:"stderr" yaml:"stderr"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message" yaml:"message"`
}

func newListItems(sessions []model.SessionRecord) []listItem {
	items := make([]listItem, len(sessions))
	for i, s := range sessions {
		items[i] = listItem{
			ID:        s.ID,
			Operation: s.Operation,
			Target:    s.Target,
			State:     string(s.State),
			ExitCode:  s.ExitCode,
			StartedAt: s.StartedAt.UTC(),
		}
	}
	return items
}

func newSessionOutput(s model.SessionRecord) sessionOutput {
	output := sessionOutput{
		ID:        s.ID,
		Operation: s.Operation,
		Target:    s.Target,
		Kind:      string(s.Kind),
		Mode:      string(s.Mode),
		State:     string(s.State),
		Error:     s.Error,
		Bytes: bytesOutput{
			Stdin:  s.StdinBytes,
			Stdout: s.StdoutBytes,
			Stderr: s.StderrBytes,
		},
		DroppedFrames: s.DroppedFrames,
		ExitCode:      s.ExitCode,
		StartedAt:     s.StartedAt.UTC(),
	}

	if s.EndedAt != nil {
		utcTime := s.EndedAt.UTC()
		output.EndedAt = &utcTime
		output.Duration = utcTime.Sub(output.StartedAt)
	}

	return output
}

// PrintHistory prints sessions in JSON format with a subset of fields.
func (j *JSONPrinter) PrintHistory(sessions []model.SessionRecord) error {
	return j.encode(newListItems(sessions))
}

// PrintSession prints the detailed session in JSON format.
func (j *JSONPrinter) PrintSession(session model.SessionRecord) error {
	return j.encode(newSessionOutput(session))
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
