package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// WriteSuccess writes a green check line
func WriteSuccess(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// WriteWarning writes a yellow warning line
func WriteWarning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, "! %s\n", fmt.Sprintf(format, args...))
}

// WriteError writes a red error line
func WriteError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "Error: %v\n", err)
}

// NotFoundError is a lookup failure carrying "did you mean" suggestions
type NotFoundError struct {
	What        string
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.What, e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}
