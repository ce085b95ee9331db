package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/hashit/config"
	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/report"
	"github.com/byte4ever/hashit/store"
)

// These tests install the process logger, so they do not
// run in parallel.

func execute(tb testing.TB, args ...string) (string, error) {
	tb.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--color", "off"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func writeFile(tb testing.TB, pa, content string) string {
	tb.Helper()

	require.NoError(tb, os.MkdirAll(filepath.Dir(pa), 0o750))
	require.NoError(tb, os.WriteFile(pa, []byte(content), 0o600))

	return pa
}

func exitCodeOf(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	if err != nil {
		return 1
	}

	return 0
}

func TestCheck_changed_then_unchanged(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	key := filepath.Join(dir, "out", "a.digest")

	out, err := execute(t, "check", "-o", key, in)
	require.NoError(t, err)
	assert.Equal(t, "changed "+key+"\n", out)

	out, err = execute(t, "check", "-o", key, in)
	require.NoError(t, err)
	assert.Equal(t, "unchanged "+key+"\n", out)

	writeFile(t, in, "alphA")

	out, err = execute(t, "check", "-o", key, in)
	require.NoError(t, err)
	assert.Equal(t, "changed "+key+"\n", out)
}

func TestCheck_default_key_template(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	_, err := execute(t, "check", in)
	require.NoError(t, err)

	got, err := os.ReadFile(in + ".digest")
	require.NoError(t, err)
	assert.Equal(t, digester.Default().Sum([]byte("alpha")), got)
}

func TestCheck_exit_code(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	_, err := execute(t, "check", "--exit-code", in)
	assert.Equal(t, exitCodeChanged, exitCodeOf(err))

	_, err = execute(t, "check", "--exit-code", in)
	assert.Zero(t, exitCodeOf(err))
}

func TestCheck_missing_input(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "k")

	_, err := execute(t, "check", "-o", key, filepath.Join(dir, "absent"))

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.NoFileExists(t, key)
}

func TestCheck_json_and_algorithm_flag(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	key := filepath.Join(dir, "k")

	out, err := execute(
		t, "--format", "json", "--algorithm", "sha256",
		"check", "-o", key, in,
	)
	require.NoError(t, err)

	var en report.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &en))
	assert.True(t, en.Changed)
	assert.Equal(t, []string{in}, en.Inputs)

	got, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Equal(
		t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		digester.Hex(got),
	)
}

func TestCheck_lock(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	key := filepath.Join(dir, "k")

	_, err := execute(t, "--lock", "check", "-o", key, in)

	require.NoError(t, err)
	assert.FileExists(t, key+".lock")
}

func TestCheck_lock_needs_file_backend(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	_, err := execute(t, "--lock", "--backend", "memory", "check", "-o", "k", in)

	require.ErrorIs(t, err, store.ErrNotImplemented)
}

func TestCheck_index_backend(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")

	args := []string{"--backend", "index", "--root", dir, "check", "-o", "web", in}

	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "changed web\n", out)

	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "unchanged web\n", out)

	assert.FileExists(t, filepath.Join(dir, config.DefaultIndex))
}

func TestInvalid_algorithm(t *testing.T) {
	_, err := execute(t, "--algorithm", "md5", "check", "x")

	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestConfig_file_overrides_and_flags_win(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	cfgPath := writeFile(
		t, filepath.Join(dir, "hashit.toml"),
		"algorithm = \"sha256\"\nformat = \"json\"\n",
	)
	key := filepath.Join(dir, "k")

	out, err := execute(
		t, "--config", cfgPath, "--format", "text",
		"check", "-o", key, in,
	)
	require.NoError(t, err)
	assert.Equal(t, "changed "+key+"\n", out)

	got, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Len(t, got, 32)
}

func TestStatus_does_not_record(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	key := filepath.Join(dir, "k")

	out, err := execute(t, "status", "-o", key, in)
	require.NoError(t, err)
	assert.Equal(t, "changed "+key+" (dry run)\n", out)
	assert.NoFileExists(t, key)

	_, err = execute(t, "check", "-o", key, in)
	require.NoError(t, err)

	_, err = execute(t, "status", "--exit-code", "-o", key, in)
	assert.Zero(t, exitCodeOf(err))
}

func TestShow_splits_digests(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "bravo")
	key := filepath.Join(dir, "k")

	_, err := execute(t, "check", "-o", key, a, b)
	require.NoError(t, err)

	out, err := execute(t, "show", key)
	require.NoError(t, err)

	alg := digester.Default()
	assert.Equal(
		t,
		"0 "+alg.Name+" "+digester.Hex(alg.Sum([]byte("alpha")))+"\n"+
			"1 "+alg.Name+" "+digester.Hex(alg.Sum([]byte("bravo")))+"\n",
		out,
	)
}

func TestShow_wrong_algorithm(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	key := filepath.Join(dir, "k")

	_, err := execute(t, "--algorithm", "sha256", "check", "-o", key, in)
	require.NoError(t, err)

	_, err = execute(t, "show", key)

	require.ErrorIs(t, err, digester.ErrBadLength)
}

func TestShow_missing_key(t *testing.T) {
	_, err := execute(t, "show", filepath.Join(t.TempDir(), "nope"))

	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExec_runs_only_on_change(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "schema.sql"), "create table t;")
	key := filepath.Join(dir, "gen.digest")
	logf := filepath.Join(dir, "runs.log")

	args := []string{
		"exec", "-o", key, "-i", in, "--",
		"sh", "-c", "echo ran >> " + logf,
	}

	_, err := execute(t, args...)
	require.NoError(t, err)

	_, err = execute(t, args...)
	require.NoError(t, err)

	runs, err := os.ReadFile(logf)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(runs), "ran"))

	_, err = execute(t, append([]string{"exec", "--force"}, args[1:]...)...)
	require.NoError(t, err)

	runs, err = os.ReadFile(logf)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(runs), "ran"))
}

func TestExec_failure_does_not_record(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	key := filepath.Join(dir, "k")

	_, err := execute(t, "exec", "-o", key, "-i", in, "--", "sh", "-c", "exit 3")

	assert.Equal(t, 3, exitCodeOf(err))
	assert.NoFileExists(t, key)
}

func TestBatch_manifest(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "bravo")
	manifest := writeFile(t, filepath.Join(dir, "targets.yaml"), `
targets:
  - name: first
    output: `+filepath.Join(dir, "first.digest")+`
    inputs: [`+a+`]
  - name: second
    inputs: [`+b+`, `+a+`]
`)

	out, err := execute(t, "batch", "--jobs", "2", "--exit-code", manifest)
	assert.Equal(t, exitCodeChanged, exitCodeOf(err))
	assert.Equal(
		t,
		"first: changed "+filepath.Join(dir, "first.digest")+"\n"+
			"second: changed "+b+".digest\n",
		out,
	)

	_, err = execute(t, "batch", "--exit-code", manifest)
	assert.Zero(t, exitCodeOf(err))
}

func TestBatch_dry_run_and_failures(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	manifest := writeFile(t, filepath.Join(dir, "targets.yaml"), `
targets:
  - name: ok
    inputs: [`+a+`]
  - name: broken
    output: `+filepath.Join(dir, "broken.digest")+`
    inputs: [`+filepath.Join(dir, "absent")+`]
`)

	out, err := execute(t, "batch", "--dry-run", manifest)

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, out, "ok: changed "+a+".digest (dry run)")
	assert.Contains(t, out, "broken: error")
	assert.NoFileExists(t, a+".digest")
}

func TestBatch_duplicate_outputs(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, filepath.Join(dir, "targets.yaml"), `
targets:
  - {output: same, inputs: [x]}
  - {output: same, inputs: [y]}
`)

	_, err := execute(t, "batch", manifest)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output key")
}

func TestBatch_duplicate_outputs_under_root(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, filepath.Join(dir, "targets.yaml"), `
targets:
  - {output: out.digest, inputs: [x]}
  - {output: ../out.digest, inputs: [y]}
`)

	_, err := execute(
		t, "batch", "--root", filepath.Join(dir, "cache"), manifest,
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate output key")
}
