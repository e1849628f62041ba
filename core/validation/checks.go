package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vitals_backend/core"
	"vitals_backend/detection"
)

// CheckResult is what a single check reports back to the suite.
type CheckResult struct {
	Passed  bool
	Message string
	Error   error
}

func pass(format string, args ...any) CheckResult {
	return CheckResult{Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(err error) CheckResult {
	return CheckResult{Error: err}
}

// CheckConfig re-validates cfg and checks the default method against the
// configured credential.
func CheckConfig(cfg *core.Config) CheckResult {
	if cfg == nil {
		return fail(core.ErrMissingConfig("configuration"))
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	m, err := detection.ParseMethod(cfg.DefaultMethod)
	if err != nil {
		return fail(core.ErrUnknownMethod(cfg.DefaultMethod))
	}
	if m.RequiresCredential() && cfg.DefaultAPIKey == "" {
		return fail(core.ErrMissingCredentials(m.Label()))
	}

	keyState := "no API key"
	if cfg.DefaultAPIKey != "" {
		keyState = "API key loaded"
	}
	return pass("port %d, default %s, %s", cfg.Port, m.Label(), keyState)
}

// CheckEnvFile reports whether the optional .env file is present.
func CheckEnvFile(path string) CheckResult {
	if err := CheckFileExists(path); err != nil {
		return fail(err)
	}
	return pass("%s found", path)
}

// CheckExecutable resolves tool on PATH (or as a path). envVar names the
// setting that overrides it, for the error hint.
func CheckExecutable(tool, envVar string) CheckResult {
	if strings.TrimSpace(tool) == "" {
		return fail(core.ErrMissingConfig(envVar))
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return fail(core.ErrToolMissing(tool, envVar))
	}
	return pass("%s", path)
}

// CheckDetectorCommand resolves the executable of the detector command line.
func CheckDetectorCommand(cmdline string) CheckResult {
	name, _ := core.SplitCommandLine(cmdline)
	if name == "" {
		return fail(core.ErrMissingConfig("DETECTOR_COMMAND"))
	}
	return CheckExecutable(name, "DETECTOR_COMMAND")
}

// CheckWritableDirs creates every data directory and writes a probe file
// into each.
func CheckWritableDirs(layout core.DataLayout) CheckResult {
	if err := layout.Ensure(); err != nil {
		return fail(core.ErrDataDirUnwritable(layout.Root, err.Error()))
	}
	for _, dir := range layout.Dirs() {
		f, err := os.CreateTemp(dir, ".write-check-*")
		if err != nil {
			return fail(core.ErrDataDirUnwritable(dir, err.Error()))
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	abs, err := filepath.Abs(layout.Root)
	if err != nil {
		abs = layout.Root
	}
	return pass("%s", abs)
}

// CheckVideoDevices reports the capture devices list returns. Finding none
// is not fatal: uploads still work and some platforms cannot enumerate.
func CheckVideoDevices(list func() []string) CheckResult {
	devices := list()
	if len(devices) == 0 {
		return CheckResult{Message: "no capture devices found; webcam recording may fail"}
	}
	return pass("%s", strings.Join(devices, ", "))
}

// CheckFreeSpace warns when the data directory is low on space.
func CheckFreeSpace(path string, minFree int64) CheckResult {
	info, err := CheckDiskSpace(path, minFree)
	if err != nil {
		return fail(err)
	}
	return pass("%s free (%.0f%% used)", core.FormatBytes(info.Free), info.UsedPercent)
}

// Check is one named step of the suite. Warning-only checks never fail
// the suite.
type Check struct {
	Name        string
	WarningOnly bool
	Run         func(ctx context.Context) CheckResult
}
