// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version houses the version information for sonomad and sonomactl.
package version

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
)

// semanticAlphabet defines the allowed characters for the pre-release and
// build metadata portions of a semantic version string.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

// semverRE splits a semantic version string into its constituent parts.
var semverRE = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
	`(?:-([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

var (
	// Version is the application version per the semantic versioning 2.0.0
	// spec.  It may be overridden at build time with:
	// '-ldflags "-X github.com/grigorovich-alex/sonomacoin/internal/version.Version=fullsemver"'
	Version = "0.3.0-pre"

	// These fields are set during init by parsing Version.
	Major         uint
	Minor         uint
	Patch         uint
	PreRelease    string
	BuildMetadata string
)

// semVer holds the parsed components of a semantic version string.
type semVer struct {
	major, minor, patch uint
	preRelease, build   string
}

// parseSemVer parses the components of the provided semantic version string.
func parseSemVer(s string) (*semVer, error) {
	m := semverRE.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("malformed version string %q: does not "+
			"conform to semver specification", s)
	}

	var nums [3]uint
	for i, name := range []string{"major", "minor", "patch"} {
		val, err := strconv.ParseUint(m[i+1], 10, 0)
		if err != nil {
			return nil, fmt.Errorf("malformed semver %s: %w", name, err)
		}
		nums[i] = uint(val)
	}
	return &semVer{
		major:      nums[0],
		minor:      nums[1],
		patch:      nums[2],
		preRelease: m[4],
		build:      m[5],
	}, nil
}

// vcsCommitID returns the abbreviated revision the binary was built from, if
// the toolchain recorded one.
func vcsCommitID() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var vcs, revision string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs":
			vcs = bs.Value
		case "vcs.revision":
			revision = bs.Value
		}
	}
	if vcs == "git" && len(revision) > 9 {
		revision = revision[:9]
	}
	return revision
}

func init() {
	sv, err := parseSemVer(Version)
	if err != nil {
		panic(err)
	}
	Major, Minor, Patch = sv.major, sv.minor, sv.patch
	PreRelease, BuildMetadata = sv.preRelease, sv.build

	// Binaries built from a checkout without explicit build metadata carry
	// the commit they were built from.
	if BuildMetadata == "" {
		BuildMetadata = NormalizeString(vcsCommitID())
		if BuildMetadata != "" {
			Version = fmt.Sprintf("%s+%s", Version, BuildMetadata)
		}
	}
}

// String returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec.
func String() string {
	return Version
}

// NormalizeString returns the passed string stripped of all characters which
// are not valid for pre-release and build metadata strings.
func NormalizeString(str string) string {
	var b strings.Builder
	for _, r := range str {
		if strings.ContainsRune(semanticAlphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
