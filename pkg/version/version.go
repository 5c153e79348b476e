// Package version holds the build version string.
package version

// Version is the application version. Overridden at build time via
// -ldflags "-X nearbybot/pkg/version.Version=...".
var Version = "dev"
