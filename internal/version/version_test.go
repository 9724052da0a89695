package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String()
	if !strings.Contains(got, Version) || !strings.Contains(got, GitSHA) || !strings.Contains(got, BuildTime) {
		t.Errorf("String() = %q, missing build identity fields", got)
	}
}
