package agentsim

import (
	"regexp"
	"strings"
	"testing"
)

func TestVersion_IsSemver(t *testing.T) {
	t.Parallel()

	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(Version) {
		t.Errorf("Version = %q, want MAJOR.MINOR.PATCH", Version)
	}
}

func TestBuildInfo(t *testing.T) {
	t.Parallel()

	info := BuildInfo()
	for _, want := range []string{Version, GitCommit, BuildDate} {
		if !strings.Contains(info, want) {
			t.Errorf("BuildInfo() = %q, missing %q", info, want)
		}
	}
}
