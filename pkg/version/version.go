// Package version provides build version information for nereid-fetch.
package version

// BuildVersion is the semantic version of the build. It may be overridden at
// link time with -ldflags "-X github.com/yuiseki/NEREID/pkg/version.BuildVersion=...".
var BuildVersion = "1.0.0"

// String returns a human-readable version line.
func String() string {
	return "nereid-fetch " + BuildVersion
}
