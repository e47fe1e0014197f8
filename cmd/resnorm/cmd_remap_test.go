package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umilab/resnorm/internal/failure"
)

func TestRemapCommand(t *testing.T) {
	in := writeFile(t, t.TempDir(), "primers.csv", "h0,h1,h2,h3,h4A,h5A,h6A\na,b,c,d,VAL4,VAL5,VAL6\n")
	out := filepath.Join(t.TempDir(), "remapped.csv")

	res := runCLI(t, "remap", "-i", in, "-o", out)
	require.NoError(t, res.err)

	assert.Equal(t, "VAL5|VAL6,VAL4\n", readFile(t, out))
	assert.Contains(t, res.stdout, "Wrote 1 lines from "+in)
}

func TestRemapCommand_Stdout(t *testing.T) {
	in := writeFile(t, t.TempDir(), "primers.csv", "h0,h1,h2,h3,h4,h5,h6\n0,1,2,3,12,P1,AATCG\n0,1,2,3,7,P2,GGTCA\n")

	res := runCLI(t, "remap", "--input", in, "--output", "-")
	require.NoError(t, res.err)
	assert.Equal(t, "P1|AATCG,12\nP2|GGTCA,7\n", res.stdout)
}

func TestRemapCommand_ShortRow(t *testing.T) {
	in := writeFile(t, t.TempDir(), "primers.csv", "h0,h1,h2,h3,h4,h5,h6\n0,1,2,3,12,P1,AATCG\n0,1,2\n")
	out := filepath.Join(t.TempDir(), "remapped.csv")

	res := runCLI(t, "remap", "-i", in, "-o", out)
	require.Error(t, res.err)

	assert.ErrorIs(t, res.err, failure.ErrMalformedRecord)
	var recErr *failure.RecordError
	require.ErrorAs(t, res.err, &recErr)
	assert.Equal(t, 3, recErr.Line)
	assert.Equal(t, ExitInputError, exitCode(res.err))

	assert.Equal(t, "P1|AATCG,12\n", readFile(t, out), "lines before the bad row stay written")
}

func TestRemapCommand_MissingInputKeepsOutput(t *testing.T) {
	out := writeFile(t, t.TempDir(), "remapped.csv", "previous\n")

	tests := []struct {
		name  string
		input string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.csv")},
		{"directory", t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "remap", "-i", tt.input, "-o", out)
			require.Error(t, res.err)
			assert.ErrorIs(t, res.err, failure.ErrInputNotFound)
			assert.Equal(t, ExitInputError, exitCode(res.err))
			assert.Equal(t, "previous\n", readFile(t, out))
		})
	}
}

func TestRemapCommand_Summary(t *testing.T) {
	in := writeFile(t, t.TempDir(), "p.csv", "h0,h1,h2,h3,h4,h5,h6\n0,1,2,3,12,P1,AATCG\n")
	out := filepath.Join(t.TempDir(), "remapped.csv")

	res := runCLI(t, "remap", "-i", in, "-o", out, "--summary")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "ROWS")
	assert.Contains(t, res.stdout, in)
}

func TestRemapCommand_LedgerFromConfig(t *testing.T) {
	in := writeFile(t, t.TempDir(), "p.csv", "h0,h1,h2,h3,h4,h5,h6\n0,1,2,3,12,P1,AATCG\n")
	out := filepath.Join(t.TempDir(), "remapped.csv")
	db := filepath.Join(t.TempDir(), "ledger.db")
	cfg := writeConfig(t, "ledger:\n  enabled: true\n  path: "+db+"\n")

	res := runCLI(t, "--config", cfg, "remap", "-i", in, "-o", out)
	require.NoError(t, res.err)

	res = runCLI(t, "--config", cfg, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "remap")
	assert.Contains(t, res.stdout, in)
}

func TestRemapCommand_BlankRowInsideFile(t *testing.T) {
	in := writeFile(t, t.TempDir(), "p.csv", "h0,h1,h2,h3,h4,h5,h6\n\na,b,c,d,4,5,6\n")
	out := filepath.Join(t.TempDir(), "remapped.csv")

	res := runCLI(t, "remap", "-i", in, "-o", out)
	require.Error(t, res.err)

	var recErr *failure.RecordError
	require.ErrorAs(t, res.err, &recErr)
	assert.Equal(t, 2, recErr.Line)
	assert.Equal(t, 1, recErr.Got)
	assert.Equal(t, ExitInputError, exitCode(res.err))
}
