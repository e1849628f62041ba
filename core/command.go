package core

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// maxStderrTail bounds how much captured stderr is kept for diagnostics.
const maxStderrTail = 4096

// SafeCommand wraps exec.Cmd with a buffer that captures stderr, so crash
// output from ffmpeg or the detector is not lost when the process fails.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand prepares a context-bound command with captured stderr.
// It does not start the process.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// WrapCommand attaches a stderr buffer to an already built command.
func WrapCommand(cmd *exec.Cmd) *SafeCommand {
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// StderrTail returns the last few KB of captured stderr, trimmed.
func (s *SafeCommand) StderrTail() string {
	if s == nil || s.Stderr == nil {
		return ""
	}
	b := s.Stderr.Bytes()
	if len(b) > maxStderrTail {
		b = b[len(b)-maxStderrTail:]
	}
	return strings.TrimSpace(string(b))
}

// SplitCommandLine splits a configured command such as "python3 detect.py"
// into the executable and its leading arguments. Quoting is not supported.
func SplitCommandLine(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
