package printer

import "github.com/slok/mobydemux/internal/model"

// Printer knows how to print demux session information in different formats.
type Printer interface {
	PrintHistory(sessions []model.SessionRecord) error
	PrintSession(session model.SessionRecord) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
	_ Printer = &YAMLPrinter{}
)
