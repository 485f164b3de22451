// Package version carries the build information of false2true, injected at
// link time:
//
//	go build -ldflags "-X github.com/false2true/false2true/version.Version=v1.0.0 \
//	  -X github.com/false2true/false2true/version.Commit=$(git rev-parse HEAD)"
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns "version (commit, built date)".
func String() string {
	return Version + " (" + Commit + ", built " + Date + ")"
}
