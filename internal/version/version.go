package version

import (
	"fmt"
	"runtime"
)

// Build information. Populated at build-time via ldflags:
//
//	-X github.com/sadopc/paytrackr/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String is the one-line form printed by the version command.
func String() string {
	return fmt.Sprintf("paytrackr %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}
