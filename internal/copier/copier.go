package copier

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// dirMode is applied to directories the copier creates itself.
const dirMode fs.FileMode = 0o755

// File copies the regular file src into dstDir, keeping its base name and
// permission bits. It returns the path of the copy.
func File(ctx context.Context, src, dstDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", pathError("copy", src, unwrapPathError(err))
	}

	if !info.Mode().IsRegular() {
		return "", pathError("copy", src, ErrNotRegular)
	}

	dst := filepath.Join(dstDir, filepath.Base(src))
	if err = copyRegular(src, dst, info.Mode().Perm()); err != nil {
		return "", err
	}

	return dst, nil
}

// Tree recursively copies the directory src to dst, preserving structure,
// permission bits and symbolic links. dst is created if missing. When src
// itself is a symbolic link, the directory it points to is copied; links
// below src are recreated as links.
func Tree(ctx context.Context, src, dst string) error {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return pathError("copy", src, unwrapPathError(err))
	}

	info, err := os.Stat(root)
	if err != nil {
		return pathError("copy", src, unwrapPathError(err))
	}

	if !info.IsDir() {
		return pathError("copy", src, ErrNotDir)
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return pathError("copy", path, err)
		}

		target := filepath.Join(dst, rel)

		switch {
		case entry.IsDir():
			return mkdir(path, target)
		case entry.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				return pathError("copy", path, err)
			}

			return copyRegular(path, target, info.Mode().Perm())
		default:
			// Sockets, devices and pipes have no place in a distribution.
			return nil
		}
	})
}

// Matching copies the regular files directly inside srcDir whose base name
// matches pattern into dstDir, creating dstDir first. Subdirectories and
// non-matching entries are skipped. It returns the copied names in lexical order.
func Matching(ctx context.Context, srcDir, dstDir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, pathError("copy", srcDir, unwrapPathError(err))
	}

	if err = os.MkdirAll(dstDir, dirMode); err != nil {
		return nil, pathError("mkdir", dstDir, unwrapPathError(err))
	}

	copied := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		// Pattern was validated above.
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			continue
		}

		if _, err = File(ctx, filepath.Join(srcDir, entry.Name()), dstDir); err != nil {
			return copied, err
		}

		copied = append(copied, entry.Name())
	}

	sort.Strings(copied)

	return copied, nil
}

func mkdir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return pathError("copy", src, unwrapPathError(err))
	}

	// Owner write access is kept so the staging tree can be removed afterwards.
	if err = os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return pathError("mkdir", dst, unwrapPathError(err))
	}

	return nil
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return pathError("readlink", src, unwrapPathError(err))
	}

	if err = os.Symlink(target, dst); err != nil {
		return pathError("symlink", dst, unwrapPathError(err))
	}

	return nil
}

func copyRegular(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return pathError("open", src, unwrapPathError(err))
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return pathError("create", dst, unwrapPathError(err))
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = pathError("close", dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return pathError("write", dst, err)
	}

	// OpenFile only applies perm to new files and honours the umask.
	if err = out.Chmod(perm); err != nil {
		return pathError("chmod", dst, unwrapPathError(err))
	}

	return nil
}

// unwrapPathError strips an *fs.PathError so the copier does not nest them.
func unwrapPathError(err error) error {
	//nolint:errorlint // Only the outermost layer is stripped.
	if pathErr, ok := err.(*fs.PathError); ok {
		return pathErr.Err
	}

	return err
}
