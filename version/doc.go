// Package version reports the build of a podflow binary.
//
// Version, GitCommit and BuildTime are set with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/podflow/version.Version=1.4.0"
//
// Values left empty are filled from the module build info when available.
package version
