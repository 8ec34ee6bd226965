package config

import "fmt"

// CurrentVersion is the sweep file format this build reads.
const CurrentVersion = 1

// Reasons reported by VersionError.
const (
	versionMissing = "missing"
	versionNewer   = "newer than this build"
)

// VersionError reports a sweep file whose version cannot be read.
type VersionError struct {
	Version int
	Current int
	Reason  string
}

func (e *VersionError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case versionMissing:
		return fmt.Sprintf("config version is missing; add `version: %d` at the top of the file", e.Current)
	case versionNewer:
		return fmt.Sprintf("config version %d is newer than this build (reads %d); upgrade ragsweep", e.Version, e.Current)
	}
	return fmt.Sprintf("config version %d is unsupported (reads %d)", e.Version, e.Current)
}

// ValidateVersion accepts exactly CurrentVersion. Zero or negative means the
// field was left out.
func ValidateVersion(version int) error {
	switch {
	case version <= 0:
		return &VersionError{Version: version, Current: CurrentVersion, Reason: versionMissing}
	case version > CurrentVersion:
		return &VersionError{Version: version, Current: CurrentVersion, Reason: versionNewer}
	}
	return nil
}
