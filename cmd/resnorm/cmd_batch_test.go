package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umilab/resnorm/internal/failure"
)

// sampleDir holds two .res files and one file that must be ignored.
func sampleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "b.res", "#Template\tSample Name\tCount\n1 p1 AA\t3\n2 p2 CC\t4\n")
	writeFile(t, dir, "a.res", "7 solo\t9\n")
	writeFile(t, dir, "notes.txt", "1 ignored\t0\n")
	return dir
}

const sampleOutput = "a.res\n" +
	"solo,9\n" +
	"b.res\n" +
	"#Template,SampleName,Count\n" +
	"p1_AA,3\n" +
	"p2_CC,4\n"

func TestBatchCommand_WritesOutputFile(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.NoError(t, res.err)

	assert.Equal(t, sampleOutput, readFile(t, out))
	assert.Contains(t, res.stdout, "Wrote 6 lines from 2 files")
}

func TestBatchCommand_LongFlags(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "--input", dir, "--output", out)
	require.NoError(t, res.err)
	assert.Equal(t, sampleOutput, readFile(t, out))
}

func TestBatchCommand_OverwritesExistingOutput(t *testing.T) {
	dir := sampleDir(t)
	out := writeFile(t, t.TempDir(), "merged.csv", strings.Repeat("stale line\n", 50))

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.NoError(t, res.err)
	assert.Equal(t, sampleOutput, readFile(t, out))
}

func TestBatchCommand_Stdout(t *testing.T) {
	dir := sampleDir(t)

	res := runCLI(t, "batch", "-i", dir, "-o", "-")
	require.NoError(t, res.err)

	assert.Equal(t, sampleOutput, res.stdout, "status must not be mixed into the output")
	assert.Contains(t, res.stderr, "Wrote 6 lines from 2 files")
}

func TestBatchCommand_EmptyDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", t.TempDir(), "-o", out)
	require.NoError(t, res.err)
	assert.Empty(t, readFile(t, out))
}

func TestBatchCommand_MissingInputKeepsOutput(t *testing.T) {
	out := writeFile(t, t.TempDir(), "merged.csv", "previous\n")

	res := runCLI(t, "batch", "-i", filepath.Join(t.TempDir(), "nope"), "-o", out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrInputNotFound)
	assert.Equal(t, ExitInputError, exitCode(res.err))
	assert.Equal(t, "previous\n", readFile(t, out))
}

func TestBatchCommand_MissingOutputDirectory(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "missing", "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrOutputWrite)
	assert.Equal(t, ExitError, exitCode(res.err))
}

func TestBatchCommand_RequiresPaths(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"batch"}},
		{"no output", []string{"batch", "-i", "data"}},
		{"no input", []string{"batch", "-o", "out.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			require.Error(t, res.err)
			assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
			assert.Equal(t, ExitError, exitCode(res.err))
		})
	}
}

func TestBatchCommand_RejectsArgs(t *testing.T) {
	res := runCLI(t, "batch", "extra")
	assert.Error(t, res.err)
}

func TestBatchCommand_Summary(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out, "--summary")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "FILE   MARKERS  DATA  LINES")
	assert.Contains(t, res.stdout, "a.res  0        1     2")
	assert.Contains(t, res.stdout, "b.res  1        2     4")
	assert.Contains(t, res.stdout, "TOTAL  1        3     6")
}

func TestBatchCommand_Gzip(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv.gz")

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.NoError(t, res.err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, sampleOutput, string(got))
}

func TestBatchCommand_UnknownFormat(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out, "--format", "parquet")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
}

func TestBatchCommand_ConfigMarkerAndExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "run1.tsv", "#Tpl\tSample Name\n1 x y\t2\n")
	writeFile(t, dir, "run0.res", "1 skipped\t0\n")
	cfg := writeConfig(t, "batch:\n  extension: .tsv\n  marker: \"#Tpl\"\n")
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "--config", cfg, "batch", "-i", dir, "-o", out)
	require.NoError(t, res.err)
	assert.Equal(t, "run1.tsv\n#Tpl,SampleName\nx_y,2\n", readFile(t, out))
}

func TestBatchCommand_EncodingFlag(t *testing.T) {
	dir := t.TempDir()
	// "1 Müller" in ISO-8859-1
	writeFile(t, dir, "latin.res", "1 M\xfcller\t5\n")
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out, "--encoding", "latin1")
	require.NoError(t, res.err)
	assert.Equal(t, "latin.res\nMüller,5\n", readFile(t, out))
}

func TestBatchCommand_InvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "batch:\n  colour: blue\n")

	res := runCLI(t, "--config", cfg, "batch", "-i", t.TempDir(), "-o", "-")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
}

func TestBatchCommand_LedgerAndHistory(t *testing.T) {
	dir := sampleDir(t)
	out := filepath.Join(t.TempDir(), "merged.csv")
	db := filepath.Join(t.TempDir(), "runs", "ledger.db")

	res := runCLI(t, "batch", "-i", dir, "-o", out, "--ledger", db)
	require.NoError(t, res.err)
	time.Sleep(5 * time.Millisecond)

	res = runCLI(t, "batch", "-i", filepath.Join(dir, "nope"), "-o", out, "--ledger", db)
	require.ErrorIs(t, res.err, failure.ErrInputNotFound)

	res = runCLI(t, "history", "--ledger", db)
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 4, "header, rule and two runs:\n%s", res.stdout)
	assert.Contains(t, lines[0], "PIPELINE")
	assert.Contains(t, lines[2], "failed (input)")
	assert.Contains(t, lines[3], "batch")
	assert.Contains(t, lines[3], "ok")
}

func TestBatchCommand_StdoutRejectsFormatAndCompression(t *testing.T) {
	dir := sampleDir(t)

	tests := []struct {
		name string
		args []string
	}{
		{"xlsx flag", []string{"--format", "xlsx"}},
		{"gzip flag", []string{"--compression", "gzip"}},
		{"zstd flag", []string{"--compression", "zstd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"batch", "-i", dir, "-o", "-"}, tt.args...)
			res := runCLI(t, args...)
			require.Error(t, res.err)
			assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
			assert.Equal(t, ExitError, exitCode(res.err))
			assert.Empty(t, res.stdout)
		})
	}
}

func TestBatchCommand_StdoutAcceptsPlainText(t *testing.T) {
	dir := sampleDir(t)

	res := runCLI(t, "batch", "-i", dir, "-o", "-", "--format", "text", "--compression", "none")
	require.NoError(t, res.err)
	assert.Equal(t, sampleOutput, res.stdout)
}

func TestBatchCommand_StdoutRejectsConfiguredCompression(t *testing.T) {
	cfg := writeConfig(t, "output:\n  compression: gzip\n")

	res := runCLI(t, "--config", cfg, "batch", "-i", sampleDir(t), "-o", "-")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
}

func TestBatchCommand_BlankLineInsideFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gap.res", "1 p AA\t3\n\n2 q CC\t4\n")
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrMalformedRecord)
	assert.Equal(t, ExitInputError, exitCode(res.err))
}

func TestBatchCommand_InvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.res", "1 caf\xe9 AA\t3\n")
	out := filepath.Join(t.TempDir(), "merged.csv")

	res := runCLI(t, "batch", "-i", dir, "-o", out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrMalformedRecord)
	assert.Equal(t, ExitInputError, exitCode(res.err))
}

func TestBatchCommand_GzipLevelOutOfRange(t *testing.T) {
	out := filepath.Join(t.TempDir(), "merged.csv.gz")
	cfg := writeConfig(t, "output:\n  params:\n    level: 15\n")

	res := runCLI(t, "--config", cfg, "batch", "-i", sampleDir(t), "-o", out)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, failure.ErrInvalidConfig)
	assert.Equal(t, ExitError, exitCode(res.err))
}
