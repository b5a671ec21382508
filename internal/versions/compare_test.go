package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		newVersion string
		oldVersion string
		expected   bool
	}{
		{name: "newer minor", newVersion: "0.3.0", oldVersion: "0.2.9", expected: true},
		{name: "older patch", newVersion: "0.2.1", oldVersion: "0.2.2", expected: false},
		{name: "equal", newVersion: "1.0.0", oldVersion: "1.0.0", expected: false},
		{name: "release after prerelease", newVersion: "1.0.0", oldVersion: "1.0.0-rc.1", expected: true},
		{name: "v prefix", newVersion: "v1.1.0", oldVersion: "v1.0.0", expected: true},
		{name: "non semver falls back to strings", newVersion: "nightly-b", oldVersion: "nightly-a", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsNewerVersion(tt.newVersion, tt.oldVersion))
		})
	}
}

func TestWrittenByNewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		recorded string
		current  string
		expected bool
	}{
		{name: "newer release", recorded: "v0.5.0", current: "v0.4.2", expected: true},
		{name: "same release", recorded: "v0.4.2", current: "v0.4.2", expected: false},
		{name: "older release", recorded: "v0.3.0", current: "v0.4.2", expected: false},
		{name: "unstamped entry", recorded: "", current: "v0.4.2", expected: false},
		{name: "recorded by development build", recorded: "dev-1a2b3c4d", current: "v0.4.2", expected: false},
		{name: "running a development build", recorded: "v9.0.0", current: "dev", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, WrittenByNewer(tt.recorded, tt.current))
		})
	}
}
