package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/mobydemux/internal/model"
)

// TablePrinter prints session information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintHistory prints sessions in a table format.
func (t *TablePrinter) PrintHistory(sessions []model.SessionRecord) error {
	if len(sessions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tOPERATION\tTARGET\tKIND\tSTATE\tEXIT\tOUTPUT\tSTARTED")

	// Print rows.
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Operation,
			shortTarget(s.Target),
			s.Kind,
			s.State,
			exitCode(s.ExitCode),
			FormatBytes(s.StdoutBytes+s.StderrBytes),
			TimeAgo(s.StartedAt),
		)
	}

	return nil
}

// PrintSession prints the detailed session.
func (t *TablePrinter) PrintSession(s model.SessionRecord) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", s.ID)
	fmt.Fprintf(t.writer, "Operation:  %s\n", s.Operation)
	fmt.Fprintf(t.writer, "Target:     %s\n", s.Target)
	fmt.Fprintf(t.writer, "Kind:       %s\n", s.Kind)
	fmt.Fprintf(t.writer, "Mode:       %s\n", s.Mode)
	fmt.Fprintf(t.writer, "State:      %s\n", s.State)

	if s.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", s.Error)
	}

	fmt.Fprintf(t.writer, "Exit code:  %s\n", exitCode(s.ExitCode))
	fmt.Fprintf(t.writer, "Stdin:      %s\n", FormatBytes(s.StdinBytes))
	fmt.Fprintf(t.writer, "Stdout:     %s\n", FormatBytes(s.StdoutBytes))
	fmt.Fprintf(t.writer, "Stderr:     %s\n", FormatBytes(s.StderrBytes))

	if s.DroppedFrames > 0 {
		fmt.Fprintf(t.writer, "Dropped:    %d frames\n", s.DroppedFrames)
	}

	fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(s.StartedAt))

	if s.EndedAt != nil {
		fmt.Fprintf(t.writer, "Ended:      %s\n", FormatTimestamp(*s.EndedAt))
	}
	fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(s.StartedAt, s.EndedAt))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func exitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *code)
}

// shortTarget shortens container and exec IDs the same way the docker CLI does.
func shortTarget(target string) string {
	const shortLen = 12
	if len(target) == 64 {
		return target[:shortLen]
	}
	return target
}
