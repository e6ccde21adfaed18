package version

// Set with -ldflags "-X github.com/Emyrk/profgraph/internal/version.GitTag=..."
var (
	GitTag    = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
