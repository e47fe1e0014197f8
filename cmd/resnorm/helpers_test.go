package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umilab/resnorm/internal/projectconfig"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command with args. Unless args name a config
// file, an empty one is used so no .resnorm.yaml above the test directory
// leaks in.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	t.Setenv(projectconfig.EnvLedger, "")

	if !slices.Contains(args, "--config") {
		args = append(args, "--config", writeConfig(t, ""))
	}

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), projectconfig.FileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
