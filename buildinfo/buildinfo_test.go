package buildinfo_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/mod/semver"

	"github.com/livedash/livedash/buildinfo"
)

func TestBuildInfo(t *testing.T) {
	t.Parallel()

	t.Run("Version", func(t *testing.T) {
		t.Parallel()

		version := buildinfo.Version()
		require.True(t, semver.IsValid(version), "version %q is not semver", version)
		// Tests are never built with an injected tag.
		require.True(t, buildinfo.IsDev())
		require.True(t, strings.HasPrefix(version, "v0.0.0-devel"))
	})

	t.Run("ExternalURL", func(t *testing.T) {
		t.Parallel()

		require.True(t, strings.HasPrefix(buildinfo.ExternalURL(), "https://github.com/livedash/livedash"))
	})
}
