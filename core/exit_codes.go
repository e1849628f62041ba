package core

// Process exit codes. Signal exits follow the 128+N convention.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1

	// ExitCodeConfig is invalid configuration or a failed startup check.
	ExitCodeConfig = 2

	// ExitCodeSIGINT is a forced exit after a second interrupt.
	ExitCodeSIGINT = 130
)

// ExitCodeFor maps an error returned by a command to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if _, ok := IsConfigError(err); ok {
		return ExitCodeConfig
	}
	return ExitCodeError
}
