package version

var (
	// Version contains the current version of tcpmond
	Version = "dev"

	// CommitHash contains the current git commit hash
	CommitHash = "unknown"

	// BuildTime contains the time of build
	BuildTime = "unknown"
)
