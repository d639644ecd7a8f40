package output

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dumpsplit/internal/util"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// WriteArchive packs every file in dir into dir/chunks.tar.zst and
// returns the archive path.
func WriteArchive(dir string) (path string, err error) {
	archivePath := filepath.Join(dir, ArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", errors.Wrap(err, "create archive")
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", errors.Wrap(err, "init zstd writer")
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer util.CloseWithErr(src, "archive source")
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return "", errors.Wrap(walkErr, "archive chunks")
	}
	return archivePath, nil
}
