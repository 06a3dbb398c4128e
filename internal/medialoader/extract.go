package medialoader

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RagingGuard/simple-video-share/internal/xerrors"
)

const (
	// maxSingleFile caps one extracted file. Media bundles legitimately
	// carry multi-gigabyte videos; this only guards against runaway
	// decompression.
	maxSingleFile int64 = 16 << 30

	// maxTotalExtract caps the whole bundle.
	maxTotalExtract int64 = 128 << 30
)

// copyWithHash copies from src to dst while computing SHA256
func copyWithHash(dst io.Writer, src io.Reader) (written int64, hash string, err error) {
	h := sha256.New()
	w := io.MultiWriter(dst, h)

	written, err = io.Copy(w, src)
	if err != nil {
		return written, "", err
	}

	return written, hex.EncodeToString(h.Sum(nil)), nil
}

// extractTarGz unpacks a bundle archive into dst. Entries are restricted
// to plain files and directories with sanitized relative paths.
func extractTarGz(bundlePath, dst string) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return xerrors.Wrapf(err, "open %s", bundlePath)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var totalBytes int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Wrap(err, "read tar header")
		}

		target, err := sanitizeTarPath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Wrapf(err, "create dir %s", target)
			}

		case tar.TypeReg:
			if hdr.Size > maxSingleFile {
				return xerrors.Newf("file %s exceeds max size (%d > %d)", hdr.Name, hdr.Size, maxSingleFile)
			}
			totalBytes += hdr.Size
			if totalBytes > maxTotalExtract {
				return xerrors.Newf("total extracted size exceeds limit (%d bytes, max %d)", totalBytes, maxTotalExtract)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return xerrors.Wrapf(err, "create parent of %s", target)
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}

		default:
			// symlinks, devices, and friends have no business in a
			// media bundle
			return xerrors.Newf("unsupported file type in archive: %s (type=%d)", hdr.Name, hdr.Typeflag)
		}
	}
}

// sanitizeTarPath prevents directory traversal attacks
func sanitizeTarPath(dst, name string) (string, error) {
	name = filepath.Clean(name)

	if filepath.IsAbs(name) {
		return "", xerrors.Newf("absolute path in tar: %s", name)
	}
	if strings.Contains(name, "..") {
		return "", xerrors.Newf("path traversal in tar: %s", name)
	}

	target := filepath.Join(dst, name)

	// double-check the result is within dst
	if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), filepath.Clean(dst)+string(os.PathSeparator)) {
		if filepath.Clean(target) != filepath.Clean(dst) {
			return "", xerrors.Newf("path escapes destination: %s", name)
		}
	}

	return target, nil
}

// writeFile writes one entry from the tar reader with a size limit.
func writeFile(path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return xerrors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	lr := io.LimitReader(r, maxSingleFile+1)
	n, err := io.Copy(f, lr)
	if err != nil {
		return xerrors.Wrapf(err, "write %s", path)
	}
	if n > maxSingleFile {
		return xerrors.Newf("file too large: %s (%d bytes)", path, n)
	}

	return nil
}
