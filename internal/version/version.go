package version

// Version is the CQB release version, overridable at build time via
// -ldflags "-X cqb/internal/version.Version=..."
var Version = "0.1.0"
