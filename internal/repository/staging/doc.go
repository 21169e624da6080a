// Package staging manages the on-disk staging directory a distribution is
// assembled in, and the lock file that keeps two runs for the same release
// from writing into it at once.
package staging
