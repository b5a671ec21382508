package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsNewerVersion reports whether newVersion is strictly greater than
// oldVersion. Valid semver strings are compared semantically; anything else
// falls back to string comparison.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)
	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}
	return newSemver.GreaterThan(oldSemver)
}

// WrittenByNewer reports whether a file stamped with recorded was produced by
// a release newer than current. Development builds never count as newer.
func WrittenByNewer(recorded, current string) bool {
	if recorded == "" || strings.HasPrefix(recorded, "dev") || strings.HasPrefix(current, "dev") {
		return false
	}
	return IsNewerVersion(recorded, current)
}
