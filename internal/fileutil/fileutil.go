// Package fileutil holds file copy and publish helpers shared by the segment
// cache and the pipeline.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// CopyFile streams src to dst with mode 0o644, replacing dst.
func CopyFile(src, dst string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, _, err := copyHashed(out, src); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst and re-reads dst to confirm size and
// SHA-256 match. dst is removed on mismatch.
func CopyFileVerified(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := verifySame(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// PublishFile copies src into dst through a temporary file in dst's
// directory and renames it into place. A failed publish leaves any existing
// dst untouched.
func PublishFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", dst, err)
	}
	defer pending.Cleanup()

	n, sum, err := copyHashed(pending, src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if n != info.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), n)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	_, dstSum, err := hashFile(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(sum, dstSum) {
		return errors.New("publish hash mismatch: file corrupted during copy")
	}
	return nil
}

// WriteFileAtomic writes data to path via a temporary file and rename.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return renameio.WriteFile(path, data, 0o644)
}

func copyHashed(dst io.Writer, src string) (int64, []byte, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, nil, err
	}
	defer in.Close()
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), in)
	if err != nil {
		return n, nil, err
	}
	return n, h.Sum(nil), nil
}

func hashFile(path string) (int64, []byte, error) {
	return copyHashed(io.Discard, path)
}

func verifySame(a, b string) error {
	sizeA, sumA, err := hashFile(a)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	sizeB, sumB, err := hashFile(b)
	if err != nil {
		return fmt.Errorf("hash copy: %w", err)
	}
	if sizeA != sizeB {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", sizeA, sizeB)
	}
	if !bytes.Equal(sumA, sumB) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
