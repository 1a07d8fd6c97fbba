// Package archive writes release archives.
package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

// ZipWriter writes the archive to a temp file beside dest and renames it into
// place, so dest is either the previous archive or the complete new one.
type ZipWriter struct{}

var _ ports.ArchiveWriter = ZipWriter{}

func NewZipWriter() ZipWriter {
	return ZipWriter{}
}

func (ZipWriter) Write(ctx context.Context, dest string, entries []ports.ArchiveEntry) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if strings.TrimSpace(dest) == "" {
		return 0, errors.New("archive destination is required")
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errs.Wrapf(err, "create archive directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, errs.Wrap(err, "create temp archive")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return 0, errs.Wrap(err, "check context")
		}
		if err := addFile(zw, entry); err != nil {
			return 0, errs.Wrapf(err, "add %s", entry.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, errs.Wrap(err, "finish zip")
	}
	if err := tmp.Sync(); err != nil {
		return 0, errs.Wrap(err, "sync temp archive")
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, errs.Wrap(err, "stat temp archive")
	}
	if err := tmp.Close(); err != nil {
		return 0, errs.Wrap(err, "close temp archive")
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, errs.Wrap(err, "rename archive into place")
	}
	committed = true
	return info.Size(), nil
}

func addFile(zw *zip.Writer, entry ports.ArchiveEntry) error {
	src, err := os.Open(entry.SourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(entry.Name)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
