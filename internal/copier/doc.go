// Package copier copies manifest entries into a staging directory: single
// files, whole directory trees and pattern-filtered directory listings.
//
// Every operation checks the context between files, so a long copy stops
// promptly on SIGINT. Failures are reported as [*PathError] values that unwrap
// to the underlying filesystem error.
package copier
