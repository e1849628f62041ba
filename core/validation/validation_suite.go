package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"vitals_backend/core"
	"vitals_backend/media"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// ValidationSuite runs the startup checks in order with colored progress
// output.
type ValidationSuite struct {
	output       io.Writer
	checks       []Check
	timeout      time.Duration
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates an empty suite. Add checks with AddCheck or
// start from DefaultSuite.
func NewValidationSuite() *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		timeout:      10 * time.Second,
		showProgress: true,
	}
}

// DefaultSuite holds the checks run before serving: configuration, the
// external tools, the data directory, capture devices and free space.
func DefaultSuite(cfg *core.Config) *ValidationSuite {
	s := NewValidationSuite()
	s.AddCheck(Check{Name: "Configuration", Run: func(context.Context) CheckResult {
		return CheckConfig(cfg)
	}})
	if cfg == nil {
		return s
	}

	s.AddCheck(Check{Name: "Environment File", WarningOnly: true, Run: func(context.Context) CheckResult {
		return CheckEnvFile(".env")
	}})
	s.AddCheck(Check{Name: "ffmpeg", Run: func(context.Context) CheckResult {
		return CheckExecutable(cfg.FFmpegPath, "FFMPEG_PATH")
	}})
	s.AddCheck(Check{Name: "ffprobe", Run: func(context.Context) CheckResult {
		return CheckExecutable("ffprobe", "")
	}})
	s.AddCheck(Check{Name: "Detector Command", Run: func(context.Context) CheckResult {
		return CheckDetectorCommand(cfg.DetectorCommand)
	}})
	s.AddCheck(Check{Name: "Data Directories", Run: func(context.Context) CheckResult {
		return CheckWritableDirs(cfg.Layout())
	}})
	s.AddCheck(Check{Name: "Video Devices", WarningOnly: true, Run: func(context.Context) CheckResult {
		return CheckVideoDevices(media.ListVideoDevices)
	}})
	s.AddCheck(Check{Name: "Disk Space", WarningOnly: true, Run: func(context.Context) CheckResult {
		return CheckFreeSpace(cfg.DataDir, DefaultMinFreeBytes)
	}})
	return s
}

// AddCheck appends a check.
func (s *ValidationSuite) AddCheck(c Check) *ValidationSuite {
	s.checks = append(s.checks, c)
	return s
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout bounds each check.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.timeout = timeout
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast skips the remaining checks after the first failure.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// Validate runs every check in sequence.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	startTime := time.Now()
	steps := make([]ValidationStep, 0, len(s.checks))

	if s.showProgress {
		s.printHeader("VitalLens Startup Validation")
	}

	failed := false
	for _, c := range s.checks {
		if failed && s.failFast {
			step := ValidationStep{Name: c.Name, Status: StepSkipped, Message: "Skipped after earlier failure"}
			if s.showProgress {
				s.printStep(step)
			}
			steps = append(steps, step)
			continue
		}

		step := s.runStep(ctx, c)
		if step.Status == StepFailed {
			failed = true
		}
		steps = append(steps, step)
	}

	result := s.buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// runStep executes a check with timing and progress output.
func (s *ValidationSuite) runStep(ctx context.Context, c Check) ValidationStep {
	if s.showProgress {
		s.printStepStart(c.Name)
	}

	checkCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startTime := time.Now()
	res := c.Run(checkCtx)
	step := ValidationStep{
		Name:    c.Name,
		Message: res.Message,
		Error:   res.Error,
		Latency: time.Since(startTime),
	}
	switch {
	case res.Passed:
		step.Status = StepPassed
	case c.WarningOnly:
		step.Status = StepWarning
	default:
		step.Status = StepFailed
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	// Overwrite the "running" line.
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)

	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Error != nil && (step.Status == StepFailed || step.Status == StepWarning) {
		errColor := color.New(color.FgRed)
		if step.Status == StepWarning {
			errColor = color.New(color.FgYellow)
		}
		errColor.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
		if ce, ok := core.IsConfigError(step.Error); ok && ce.Action != "" {
			color.New(color.FgHiBlack).Fprintf(s.output, "       %s\n", ce.Action)
		}
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed, %d warnings, %v)",
			result.PassedSteps, result.TotalSteps, result.Warnings, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetFirstError returns the first failed step's error, or nil.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation %s: ", map[bool]string{true: "Passed", false: "Failed"}[r.Success]))
	sb.WriteString(fmt.Sprintf("%d/%d checks passed", r.PassedSteps, r.TotalSteps))
	if r.FailedSteps > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", r.FailedSteps))
	}
	if r.Warnings > 0 {
		sb.WriteString(fmt.Sprintf(", %d warnings", r.Warnings))
	}
	sb.WriteString(fmt.Sprintf(" (took %v)", r.Duration.Round(time.Millisecond)))
	return sb.String()
}
