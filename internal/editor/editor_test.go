package editor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
)

func TestProgramPrecedence(t *testing.T) {
	t.Setenv("INTRACK_EDITOR", "")
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano")
	assert.Equal(t, "nano", Program())

	t.Setenv("VISUAL", "code --wait")
	assert.Equal(t, "code --wait", Program())

	t.Setenv("INTRACK_EDITOR", "hx")
	assert.Equal(t, "hx", Program())
}

func TestProgramDefault(t *testing.T) {
	t.Setenv("INTRACK_EDITOR", "")
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "  ")
	assert.Equal(t, DefaultProgram, Program())
}

func TestCommandSplitsArguments(t *testing.T) {
	e := &Editor{Program: "code --wait"}
	cmd := e.Command("/tmp/x.md")
	assert.Equal(t, []string{"code", "--wait", "/tmp/x.md"}, cmd.Args)
}

// scriptEditor returns an editor that runs a shell script on the file.
func scriptEditor(t *testing.T, script string) *Editor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-editor")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return &Editor{Program: path, TempDir: dir}
}

func TestCommandKeepsPathWithSpaces(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := filepath.Join(t.TempDir(), "My Editors")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "fake editor")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho \"saved\" >> \"$1\"\n"), 0o755))

	e := &Editor{Program: path, TempDir: t.TempDir()}
	assert.Equal(t, []string{path, "/tmp/x.md"}, e.Command("/tmp/x.md").Args)

	got, err := e.Edit(context.Background(), "start\n", ".md")
	require.NoError(t, err)
	assert.Equal(t, "start\nsaved\n", got)
}

func TestEditReturnsSavedText(t *testing.T) {
	e := scriptEditor(t, `echo "hello" >> "$1"`)

	got, err := e.Edit(context.Background(), "start\n", ".md")
	require.NoError(t, err)
	assert.Equal(t, "start\nhello\n", got)

	matches, _ := filepath.Glob(filepath.Join(e.TempDir, "intrack-*"))
	assert.Empty(t, matches, "temporary file is removed")
}

func TestEditFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"non-zero exit", "exit 3", nil},
		{"unchanged", "true", ErrUnchanged},
		{"emptied", `: > "$1"`, ErrEmpty},
		{"deleted file", `rm "$1"`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := scriptEditor(t, tt.script)

			_, err := e.Edit(context.Background(), "start\n", ".txt")

			var serr *SubprocessError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, e.Program, serr.Program)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestEditMissingProgram(t *testing.T) {
	e := &Editor{Program: filepath.Join(t.TempDir(), "no-such-editor"), TempDir: t.TempDir()}
	_, err := e.Edit(context.Background(), "x", ".txt")

	var serr *SubprocessError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "run", serr.Op)
}

func TestSessionDiscard(t *testing.T) {
	e := &Editor{Program: "vi", TempDir: t.TempDir()}
	s, err := e.Prepare("x", ".md")
	require.NoError(t, err)
	assert.FileExists(t, s.Path)

	s.Discard()
	assert.NoFileExists(t, s.Path)
}

func TestIssueTemplateRoundTrip(t *testing.T) {
	text := IssueTemplate(event.PriorityHigh, []string{"ui"})
	assert.Contains(t, text, "priority: high\n")

	_, err := ParseIssue(text)
	assert.ErrorIs(t, err, ErrEmpty, "the title must be filled in")

	edited := "title: Crash on start\npriority: c\ntags: [ui, crash]\nfields:\n  os: linux\n---\n\nIt crashes.\n\n## Steps\n1. open\n"
	p, err := ParseIssue(edited)
	require.NoError(t, err)
	assert.Equal(t, "Crash on start", p.Title)
	assert.Equal(t, event.PriorityCritical, p.Priority)
	assert.Equal(t, []string{"ui", "crash"}, p.Tags)
	assert.Equal(t, map[string]string{"os": "linux"}, p.Fields)
	assert.Equal(t, "It crashes.\n\n## Steps\n1. open", p.Body)
}

func TestParseIssueVariants(t *testing.T) {
	p, err := ParseIssue("---\ntitle: x\n---\nbody\n")
	require.NoError(t, err)
	assert.Equal(t, "x", p.Title)
	assert.Equal(t, "body", p.Body)
	assert.Equal(t, event.PriorityUnset, p.Priority)

	p, err = ParseIssue("title: crlf\r\n---\r\nbody\r\n")
	require.NoError(t, err)
	assert.Equal(t, "crlf", p.Title)

	_, err = ParseIssue("title: x\nno separator\n")
	assert.Error(t, err)

	_, err = ParseIssue("title: x\npriority: urgent\n---\n")
	assert.Error(t, err)

	_, err = ParseIssue("title: [unclosed\n---\n")
	assert.Error(t, err)
}

func TestParseComment(t *testing.T) {
	got, err := ParseComment("Looks good\n\n  indented\n" + CommentTemplate("Fix bug"))
	require.NoError(t, err)
	assert.Equal(t, "Looks good\n\n  indented", got)

	_, err = ParseComment(CommentTemplate("Fix bug"))
	assert.ErrorIs(t, err, ErrEmpty)

	got, err = ParseComment(EditTemplate("old body", "body"))
	require.NoError(t, err)
	assert.Equal(t, "old body", got)
}

func TestParseCommentKeepsLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	got, err := ParseComment("first\n" + long + "\r\nlast\n")
	require.NoError(t, err)
	assert.Equal(t, "first\n"+long+"\nlast", got)
}
