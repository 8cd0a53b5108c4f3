// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/airquality-linebot-go/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/airquality-linebot-go/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/airquality-linebot-go/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Release returns the identifier reported to error tracking, or "" for
// untagged builds.
func Release() string {
	switch {
	case Version != "" && Commit != "":
		return "airquality-linebot-go@" + Version + "+" + shortCommit()
	case Version != "":
		return "airquality-linebot-go@" + Version
	default:
		return ""
	}
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
