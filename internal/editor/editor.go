package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultProgram is used when no editor is configured.
const DefaultProgram = "vi"

type envConfig struct {
	Intrack string `env:"INTRACK_EDITOR"`
	Visual  string `env:"VISUAL"`
	Editor  string `env:"EDITOR"`
}

// Program returns the configured editor command: INTRACK_EDITOR, then
// VISUAL, then EDITOR, then DefaultProgram.
func Program() string {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return DefaultProgram
	}
	for _, p := range []string{cfg.Intrack, cfg.Visual, cfg.Editor} {
		if strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p)
		}
	}
	return DefaultProgram
}

// SubprocessError reports an editor session that produced no usable text.
type SubprocessError struct {
	Program string
	Op      string
	Err     error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("editor %q: %s: %v", e.Program, e.Op, e.Err)
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

var (
	// ErrEmpty is returned when the edited text is empty.
	ErrEmpty = errors.New("empty result, aborting")
	// ErrUnchanged is returned when the text was saved unmodified.
	ErrUnchanged = errors.New("text unchanged, aborting")
)

// Editor starts an external editor attached to the given terminal streams.
type Editor struct {
	// Program may carry arguments, e.g. "code --wait".
	Program string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	// TempDir is where edited files are created; empty means os.TempDir.
	TempDir string
}

// New returns an editor using Program() and the process streams.
func New() *Editor {
	return &Editor{
		Program: Program(),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Session is one prepared edit: a temporary file holding the initial text.
type Session struct {
	Path    string
	program string
	initial string
}

// Prepare writes initial to a new temporary file. ext (like ".md") helps
// editors pick a syntax.
func (e *Editor) Prepare(initial, ext string) (*Session, error) {
	f, err := os.CreateTemp(e.TempDir, "intrack-*"+ext)
	if err != nil {
		return nil, &SubprocessError{Program: e.Program, Op: "create file", Err: err}
	}
	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, &SubprocessError{Program: e.Program, Op: "write file", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, &SubprocessError{Program: e.Program, Op: "write file", Err: err}
	}
	return &Session{Path: f.Name(), program: e.Program, initial: initial}, nil
}

// Command returns the editor process for path without starting it.
func (e *Editor) Command(path string) *exec.Cmd {
	return e.CommandContext(context.Background(), path)
}

// CommandContext is like Command but the process is killed when ctx is done.
func (e *Editor) CommandContext(ctx context.Context, path string) *exec.Cmd {
	var args []string
	if prog := strings.TrimSpace(e.Program); prog != "" {
		// A path with spaces names one program; otherwise split off flags.
		if _, err := exec.LookPath(prog); err == nil {
			args = []string{prog}
		} else {
			args = strings.Fields(prog)
		}
	} else {
		args = []string{DefaultProgram}
	}
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return cmd
}

// Finish reads the edited text back and removes the file. runErr is the
// result of running the editor process.
func (s *Session) Finish(runErr error) (string, error) {
	defer os.Remove(s.Path)
	if runErr != nil {
		return "", &SubprocessError{Program: s.program, Op: "run", Err: runErr}
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", &SubprocessError{Program: s.program, Op: "read file", Err: err}
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", &SubprocessError{Program: s.program, Op: "read file", Err: ErrEmpty}
	}
	if text == s.initial {
		return "", &SubprocessError{Program: s.program, Op: "read file", Err: ErrUnchanged}
	}
	return text, nil
}

// Discard removes the file of a session that was never run.
func (s *Session) Discard() {
	os.Remove(s.Path)
}

// Edit runs the editor on initial and returns the saved text.
func (e *Editor) Edit(ctx context.Context, initial, ext string) (string, error) {
	s, err := e.Prepare(initial, ext)
	if err != nil {
		return "", err
	}
	return s.Finish(e.CommandContext(ctx, s.Path).Run())
}
