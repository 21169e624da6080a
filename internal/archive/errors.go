package archive

import "errors"

var (
	// ErrNotRegular is returned if a regular file is expected but the source is not one.
	ErrNotRegular = errors.New("not a regular file")
	// ErrSourceNotDir is returned if the staging path to archive is not a directory.
	ErrSourceNotDir = errors.New("archive source is not a directory")
	// ErrUnknownArchive is returned by List for files that are neither tar nor cpio.
	ErrUnknownArchive = errors.New("unrecognized archive contents")
	// errHashUnavailable is returned when the checksum function is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
)
