package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"vitals_backend/core"
)

// APIKeyEnv is the environment variable through which the credential is
// handed to the detector process. It is never placed on the command line.
const APIKeyEnv = "VITALLENS_API_KEY"

// DefaultTimeout bounds a single detector run when none is configured.
const DefaultTimeout = 5 * time.Minute

// CommandDetector runs an external detector executable once per request.
//
// The process is invoked as
//
//	<command> [leading args] --method NAME --input PATH --format json
//
// and must print either a JSON array of faces or
// {"error": {"kind": "...", "message": "..."}} on stdout. It runs inside a
// throwaway working directory because the underlying library drops
// temporary json files into its cwd.
type CommandDetector struct {
	command  string
	args     []string
	timeout  time.Duration
	tempRoot string
	logger   *zap.Logger
}

// CommandOption configures a CommandDetector.
type CommandOption func(*CommandDetector)

// WithTempRoot sets the parent directory for per-run working directories.
func WithTempRoot(dir string) CommandOption {
	return func(d *CommandDetector) {
		d.tempRoot = dir
	}
}

// NewCommandDetector creates a detector for the given command line, e.g.
// "vitallens-detect" or "python3 scripts/detect.py".
func NewCommandDetector(commandLine string, timeout time.Duration, logger *zap.Logger, opts ...CommandOption) *CommandDetector {
	name, args := core.SplitCommandLine(commandLine)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &CommandDetector{
		command: name,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Command returns the executable name.
func (d *CommandDetector) Command() string {
	return d.command
}

// Detect implements Detector.
func (d *CommandDetector) Detect(ctx context.Context, req Request) ([]FaceResult, error) {
	if d.command == "" {
		return nil, &Error{Kind: KindUnavailable, Message: "no detector command configured"}
	}

	input, err := filepath.Abs(req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve video path: %w", err)
	}

	workDir, err := os.MkdirTemp(d.tempRoot, "vitallens-run-*")
	if err != nil {
		return nil, fmt.Errorf("create detector work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			d.logger.Warn("failed to remove detector work dir",
				zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := append(append([]string{}, d.args...),
		"--method", string(req.Method),
		"--input", input,
		"--format", "json",
	)
	cmd := core.NewSafeCommand(runCtx, d.command, args...)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	if req.APIKey != "" {
		cmd.Env = append(cmd.Env, APIKeyEnv+"="+req.APIKey)
	}
	cmd.WaitDelay = 2 * time.Second
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	d.logger.Debug("detector finished",
		zap.String("method", string(req.Method)),
		zap.String("input", input),
		zap.Duration("elapsed", elapsed),
		zap.Int("stdout_bytes", stdout.Len()),
		zap.Error(runErr))

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{
				Kind:    KindUnavailable,
				Message: fmt.Sprintf("detector timed out after %s", d.timeout),
				Err:     runErr,
			}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, &Error{Kind: KindUnavailable, Message: "detector command not found: " + d.command, Err: runErr}
		}
	}

	faces, parseErr := decodeOutput(stdout.Bytes())
	if parseErr == nil {
		return faces, nil
	}

	var structured *Error
	if errors.As(parseErr, &structured) {
		if structured.Err == nil {
			structured.Err = runErr
		}
		return nil, structured
	}

	// Unstructured failure: fall back to classifying stderr text.
	stderr := cmd.StderrTail()
	d.logger.Warn("detector produced no structured result",
		zap.String("method", string(req.Method)),
		zap.String("stderr", stderr),
		zap.Error(runErr))

	message := stderr
	if message == "" && runErr != nil {
		message = runErr.Error()
	}
	if message == "" {
		message = parseErr.Error()
	}
	classified := Classify(message)
	classified.Err = runErr
	if classified.Err == nil {
		classified.Err = parseErr
	}
	return nil, classified
}

// errorEnvelope is the structured failure object a detector may print.
type errorEnvelope struct {
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Faces []FaceResult `json:"faces"`
}

// decodeOutput parses detector stdout. A structured failure is returned as *Error.
func decodeOutput(out []byte) ([]FaceResult, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("detector produced no output")
	}

	switch out[0] {
	case '[':
		var faces []FaceResult
		if err := json.Unmarshal(out, &faces); err != nil {
			return nil, fmt.Errorf("decode detector output: %w", err)
		}
		return faces, nil
	case '{':
		var env errorEnvelope
		if err := json.Unmarshal(out, &env); err != nil {
			return nil, fmt.Errorf("decode detector output: %w", err)
		}
		if env.Error != nil {
			kind := ParseErrorKind(env.Error.Kind)
			if kind == KindUnknown {
				kind = ClassifyMessage(env.Error.Message)
			}
			return nil, &Error{Kind: kind, Message: env.Error.Message}
		}
		return env.Faces, nil
	default:
		return nil, fmt.Errorf("unexpected detector output: %.64q", out)
	}
}
