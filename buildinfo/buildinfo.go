// Package buildinfo reports the version of the running binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

const (
	repoURL = "https://github.com/livedash/livedash"

	// develPrefix is prefixed to developer versions of the application.
	develPrefix = "v0.0.0-devel"
)

var (
	buildInfo      *debug.BuildInfo
	buildInfoValid bool
	readBuildInfo  sync.Once

	externalURL     string
	readExternalURL sync.Once

	version     string
	readVersion sync.Once

	// Injected with ldflags at build!
	tag string
)

// Version returns the semantic version of the build.
// Use golang.org/x/mod/semver to compare versions.
func Version() string {
	readVersion.Do(func() {
		revision, valid := revision()
		if valid {
			revision = "+" + revision[:min(len(revision), 7)]
		}
		if tag == "" {
			version = develPrefix + revision
			return
		}
		version = "v" + strings.TrimPrefix(tag, "v")
		if semver.Build(version) == "" {
			version += revision
		}
	})
	return version
}

// IsDev returns true if this is a development build.
func IsDev() bool {
	return strings.HasPrefix(Version(), develPrefix)
}

// ExternalURL returns a URL referencing the current livedash version.
// For production builds, this will link directly to a release.
// For development builds, this will link to a commit.
func ExternalURL() string {
	readExternalURL.Do(func() {
		if !IsDev() && semver.IsValid(Version()) {
			externalURL = fmt.Sprintf("%s/releases/tag/%s", repoURL, semver.Canonical(Version()))
			return
		}
		revision, valid := revision()
		if !valid {
			externalURL = repoURL
			return
		}
		externalURL = fmt.Sprintf("%s/commit/%s", repoURL, revision)
	})
	return externalURL
}

// Time returns when the Git revision was published.
func Time() (time.Time, bool) {
	value, valid := find("vcs.time")
	if !valid {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// revision returns the Git hash of the build.
func revision() (string, bool) {
	return find("vcs.revision")
}

func find(key string) (string, bool) {
	readBuildInfo.Do(func() {
		buildInfo, buildInfoValid = debug.ReadBuildInfo()
	})
	if !buildInfoValid {
		return "", false
	}
	for _, setting := range buildInfo.Settings {
		if setting.Key != key {
			continue
		}
		return setting.Value, true
	}
	return "", false
}
