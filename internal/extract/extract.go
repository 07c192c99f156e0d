// Package extract unpacks release archives and places the binary into the
// install directory.
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupportedArchiveFormat is returned for archive suffixes we cannot unpack.
	ErrUnsupportedArchiveFormat = errors.New("unsupported archive format")

	// ErrMissingBinary is returned when the expected binary is not in the
	// archive; the archive is corrupt or mismatched.
	ErrMissingBinary = errors.New("binary not found in archive")
)

// binaryFileMode is the permission mode for the installed binary.
const binaryFileMode = 0o755

// Unpack extracts the named binary from archivePath into workDir and returns
// the extracted file's path. The extraction strategy is dispatched strictly
// by filename suffix.
func Unpack(archivePath, binaryName, workDir string) (string, error) {
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"):
		return unpackTarGz(archivePath, binaryName, workDir)
	case strings.HasSuffix(archivePath, ".zip"):
		return unpackZip(archivePath, binaryName, workDir)
	default:
		return "", errors.Wrapf(ErrUnsupportedArchiveFormat, "archive %q", filepath.Base(archivePath))
	}
}

// unpackTarGz extracts a named binary from a .tar.gz archive.
//
//nolint:gosec // G304: archivePath is a temp file we just downloaded
func unpackTarGz(archivePath, binaryName, workDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", errors.Wrap(err, "opening archive")
	}
	defer f.Close() //nolint:errcheck // read-only file

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", errors.Wrap(err, "creating gzip reader")
	}
	defer gz.Close() //nolint:errcheck // read-only decompressor

	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", errors.Wrap(err, "reading tar entry")
		}

		// Match the binary at any path depth (e.g. "opencode" or "dist/opencode")
		if filepath.Base(header.Name) != binaryName || header.Typeflag != tar.TypeReg {
			continue
		}

		dest, pathErr := safePath(workDir, binaryName)
		if pathErr != nil {
			return "", pathErr
		}

		return writeFile(dest, tr)
	}

	return "", errors.Wrapf(ErrMissingBinary, "%q in %s", binaryName, filepath.Base(archivePath))
}

// unpackZip extracts a named binary from a .zip archive.
func unpackZip(archivePath, binaryName, workDir string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", errors.Wrap(err, "opening zip archive")
	}
	defer r.Close() //nolint:errcheck // read-only zip

	// On Windows the binary name includes .exe
	for _, f := range r.File {
		base := filepath.Base(f.Name)
		if (base != binaryName && base != binaryName+".exe") || f.FileInfo().IsDir() {
			continue
		}

		dest, pathErr := safePath(workDir, base)
		if pathErr != nil {
			return "", pathErr
		}

		rc, openErr := f.Open()
		if openErr != nil {
			return "", errors.Wrap(openErr, "opening zip entry")
		}

		path, writeErr := writeFile(dest, rc)

		_ = rc.Close()

		return path, writeErr
	}

	return "", errors.Wrapf(ErrMissingBinary, "%q in %s", binaryName, filepath.Base(archivePath))
}

// safePath validates that name resolves to a path within baseDir, preventing
// path traversal from crafted archive entries.
func safePath(baseDir, name string) (string, error) {
	dest := filepath.Join(baseDir, name)

	cleanBase := filepath.Clean(baseDir) + string(os.PathSeparator)
	cleanDest := filepath.Clean(dest)

	if !strings.HasPrefix(cleanDest, cleanBase) {
		return "", errors.Errorf("path traversal attempt: %q escapes %q", name, baseDir)
	}

	return cleanDest, nil
}

// writeFile streams reader to destPath with executable permissions.
//
//nolint:gosec // G304: destPath is within our work directory
func writeFile(destPath string, reader io.Reader) (string, error) {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, binaryFileMode)
	if err != nil {
		return "", errors.Wrap(err, "creating extracted file")
	}

	_, copyErr := io.Copy(out, reader)

	if closeErr := out.Close(); closeErr != nil && copyErr == nil {
		return "", errors.Wrap(closeErr, "closing extracted file")
	}

	if copyErr != nil {
		return "", errors.Wrap(copyErr, "extracting binary")
	}

	return destPath, nil
}

// Place moves the extracted binary into installDir under binaryName, creating
// the directory as needed and marking the result executable. A windows binary
// keeps its .exe suffix.
func Place(extractedPath, installDir, binaryName string) (string, error) {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating install directory")
	}

	if strings.HasSuffix(extractedPath, ".exe") {
		binaryName += ".exe"
	}

	target := filepath.Join(installDir, binaryName)

	if err := os.Rename(extractedPath, target); err != nil {
		// Rename fails across filesystems; fall back to copy.
		if copyErr := copyFile(extractedPath, target); copyErr != nil {
			return "", copyErr
		}
	}

	if err := os.Chmod(target, binaryFileMode); err != nil {
		return "", errors.Wrap(err, "marking binary executable")
	}

	return target, nil
}

// copyFile copies src to dst with executable permissions.
//
//nolint:gosec // G304: both paths are installer-controlled
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening extracted binary")
	}
	defer in.Close() //nolint:errcheck // read-only file

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, binaryFileMode)
	if err != nil {
		return errors.Wrap(err, "creating installed binary")
	}

	_, copyErr := io.Copy(out, in)

	if closeErr := out.Close(); closeErr != nil && copyErr == nil {
		return errors.Wrap(closeErr, "closing installed binary")
	}

	if copyErr != nil {
		return errors.Wrap(copyErr, "copying binary into install directory")
	}

	return nil
}
