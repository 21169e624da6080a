// Package version exposes build metadata for distpack.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags:
//
//	go build -ldflags "-X github.com/oshokin/distpack/internal/version.Version=1.2.0"
package version
