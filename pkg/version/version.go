package version

// Version is the current version of kinoteka. It is overridden at build time
// with ldflags.
var Version = "dev"
