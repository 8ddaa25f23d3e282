package version

// Version is the current exhibit release, overridden at build time via
// -ldflags "-X exhibit/version.Version=...".
var Version = "0.3.0"
