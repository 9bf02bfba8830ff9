package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDiffCommand(t *testing.T) {
	a := writeFile(t, "a.txt", "intro\nold hook\noutro")
	b := writeFile(t, "b.txt", "intro\nnew hook\noutro")

	out, _, err := execute(t, "diff", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "- old hook\n")
	assert.Contains(t, out, "+ new hook\n")
	assert.Contains(t, out, "  intro\n")
	assert.Contains(t, out, "2 unchanged, 1 added, 1 removed (greedy)")
}

func TestDiffCommandUnifiedAndExitCode(t *testing.T) {
	a := writeFile(t, "a.txt", "a\nb")
	b := writeFile(t, "b.txt", "a\nc")

	out, _, err := execute(t, "diff", "-u", "--exit-code", "--algorithm", "matcher", a, b)
	assert.ErrorIs(t, err, errChanged)
	assert.Equal(t, " a\n-b\n+c\n", out)

	_, _, err = execute(t, "diff", "--exit-code", a, a)
	assert.NoError(t, err)
}

func TestDiffCommandRejectsUnknownAlgorithm(t *testing.T) {
	a := writeFile(t, "a.txt", "a")
	_, _, err := execute(t, "diff", "--algorithm", "myers", a, a)
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	tmpl := writeFile(t, "t.txt", "Title: {{topic}} in {{year}} {{missing}}")
	vals := writeFile(t, "v.yaml", "topic: Go tips\nyear: 2026\n")

	out, stderr, err := execute(t, "render", tmpl, "-f", vals, "--set", "topic=Rust tips")
	require.NoError(t, err)
	assert.Equal(t, "Title: Rust tips in 2026 {{missing}}", out)
	assert.Contains(t, stderr, "unresolved tags: missing")

	_, _, err = execute(t, "render", tmpl, "-f", vals, "--strict")
	assert.Error(t, err)
}

func TestRenderCommandEmptyValue(t *testing.T) {
	tmpl := writeFile(t, "t.txt", "[{{a}}]")
	vals := writeFile(t, "v.yaml", "a:\n")

	out, stderr, err := execute(t, "render", tmpl, "-f", vals, "--strict")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Empty(t, stderr)
}

func TestRenderCommandBadInput(t *testing.T) {
	tmpl := writeFile(t, "t.txt", "{{a}}")
	_, _, err := execute(t, "render", tmpl, "--set", "novalue")
	assert.Error(t, err)

	nested := writeFile(t, "v.yaml", "a:\n  b: c\n")
	_, _, err = execute(t, "render", tmpl, "-f", nested)
	assert.Error(t, err)
}

func TestTagsCommand(t *testing.T) {
	tmpl := writeFile(t, "t.txt", "{{b}} {{a}} {{b}}")
	out, _, err := execute(t, "tags", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "b\na\n", out)
}
