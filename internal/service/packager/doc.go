// Package packager assembles a release distribution.
//
// It checks that every manifest entry exists under the source root, copies
// the entries into a fresh staging directory, compresses the staging
// directory into <release>.tar.gz and removes it. Any failure aborts the run;
// the staging directory is kept for inspection unless cleanup on failure is
// requested.
package packager
