package printer

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/slok/mobydemux/internal/model"
)

// YAMLPrinter prints session information in YAML format.
type YAMLPrinter struct {
	writer io.Writer
}

// NewYAMLPrinter creates a new YAML printer.
func NewYAMLPrinter(w io.Writer) *YAMLPrinter {
	return &YAMLPrinter{writer: w}
}

// PrintHistory prints sessions in YAML format with a subset of fields.
func (y *YAMLPrinter) PrintHistory(sessions []model.SessionRecord) error {
	return y.encode(newListItems(sessions))
}

// PrintSession prints the detailed session in YAML format.
func (y *YAMLPrinter) PrintSession(session model.SessionRecord) error {
	return y.encode(newSessionOutput(session))
}

// PrintMessage prints a simple message in YAML format.
func (y *YAMLPrinter) PrintMessage(msg string) error {
	return y.encode(messageOutput{Message: msg})
}

func (y *YAMLPrinter) encode(v any) error {
	enc := yaml.NewEncoder(y.writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
