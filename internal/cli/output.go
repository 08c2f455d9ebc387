package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// Envelope wraps every JSON result.
type Envelope struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   any      `json:"data,omitempty"`
	Error  *Problem `json:"error,omitempty"`
}

// Problem describes a failed command in JSON output.
type Problem struct {
	Code    string `json:"code"` // "incomplete", "mismatch"
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textRenderer is implemented by results with their own text layout.
type textRenderer interface {
	renderText(w io.Writer)
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool // include problem details in text output
}

// Success writes a result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(Envelope{Status: "ok", Data: data})
	}
	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a problem report. It does not decide the exit code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(Envelope{
			Status: "error",
			Error:  &Problem{Code: code, Message: message, Details: details},
		})
	}
	failColor.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(e Envelope) error {
	return json.NewEncoder(f.Writer).Encode(e)
}
