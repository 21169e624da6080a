// Package config defines the packaging configuration: the release identifier,
// source and destination roots, the manifest and the archive options.
//
// Configurations are stored as YAML, or as TOML when the file name ends in
// ".toml". Default returns the historical BioC Java 1.0 layout.
package config
