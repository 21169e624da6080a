// Package release holds the domain model of a distribution: the release
// identifier, the categorized manifest of source paths and the pipeline steps
// used to turn them into an archive.
package release
