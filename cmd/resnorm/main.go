package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/umilab/resnorm/internal/failure"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Run completed
	ExitInputError = 1 // Input missing or unreadable, or a malformed record
	ExitError      = 2 // Configuration, output or runtime error
)

func exitCode(err error) int {
	switch failure.Classify(err) {
	case failure.CodeOK:
		return ExitSuccess
	case failure.CodeInput, failure.CodeMalformed:
		return ExitInputError
	default:
		return ExitError
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "resnorm:", err)
		os.Exit(exitCode(err))
	}
}
