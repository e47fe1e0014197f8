// Package wizard asks interactively for the paths a pipeline run needs when
// they were not given on the command line.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// PathRequest holds the input and output paths of a run. Empty fields are
// asked for.
type PathRequest struct {
	// InputTitle labels the input prompt, e.g. "Input directory".
	InputTitle string
	Input      string
	Output     string
}

// Missing reports whether any path still has to be asked for.
func (r PathRequest) Missing() bool {
	return strings.TrimSpace(r.Input) == "" || strings.TrimSpace(r.Output) == ""
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// RunPathWizard runs a huh form asking for every empty path in req and
// returns the completed request. Paths already set are kept as given.
func RunPathWizard(in io.Reader, out io.Writer, req PathRequest) (PathRequest, error) {
	if !req.Missing() {
		return req, nil
	}

	title := req.InputTitle
	if title == "" {
		title = "Input path"
	}

	var fields []huh.Field
	if strings.TrimSpace(req.Input) == "" {
		fields = append(fields, huh.NewInput().
			Title(title).
			Value(&req.Input).
			Validate(requirePath("input")))
	}
	if strings.TrimSpace(req.Output) == "" {
		fields = append(fields, huh.NewInput().
			Title("Output file").
			Description("Local path, azblob://container/blob, or - for stdout").
			Value(&req.Output).
			Validate(requirePath("output")))
	}

	form := huh.NewForm(huh.NewGroup(fields...)).
		WithInput(in).
		WithOutput(out)

	// Plain line prompts when the input is not a terminal (pipes, tests).
	if !IsTerminal(in) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return req, fmt.Errorf("wizard failed: %w", err)
	}

	req.Input = strings.TrimSpace(req.Input)
	req.Output = strings.TrimSpace(req.Output)
	return req, nil
}

func requirePath(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s path is required", what)
		}
		return nil
	}
}
