// Package buildinfo holds values stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/susu3304/splitbot/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the version line shown by the CLI.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}

// UserAgent identifies the bot to the Discord REST API.
func UserAgent() string {
	return fmt.Sprintf("splitbot/%s (+https://github.com/susu3304/splitbot)", Version)
}
