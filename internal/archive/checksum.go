package archive

import (
	"crypto"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ChecksumFunction is used for archive checksums and verified replacement.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// ChecksumExtension is appended to the archive name for the sidecar file.
	ChecksumExtension = ".sha512"
)

// Checksum returns the ChecksumFunction digest of the file at path.
func Checksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// WriteChecksumFile writes "<hex digest>  <archive name>" to the sidecar
// next to the archive, in the format sha512sum -c understands.
func WriteChecksumFile(archivePath string) (string, string, error) {
	sum, err := Checksum(archivePath)
	if err != nil {
		return "", "", err
	}

	digest := hex.EncodeToString(sum)
	sidecar := archivePath + ChecksumExtension
	line := digest + "  " + filepath.Base(archivePath) + "\n"

	if err = os.WriteFile(sidecar, []byte(line), FileMode); err != nil {
		return "", "", fmt.Errorf("write checksum file: %w", err)
	}

	return sidecar, digest, nil
}
