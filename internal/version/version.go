package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "scribe " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies scribe to the dictation service.
func UserAgent() string {
	return "scribe/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
