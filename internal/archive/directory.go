package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ZipDirectory archives every regular file under root into dst, naming entries by
// their slash separated path relative to root.
func ZipDirectory(ctx context.Context, root, dst string, onProgress ProgressFunc) (written int64, err error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create archive %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive %s: %w", dst, cerr)
		}
	}()

	zw := NewWriter(out)
	zw.OnProgress(onProgress)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		_, err = zw.AddLocal(ctx, filepath.ToSlash(rel), path)
		return err
	})
	if err != nil {
		return zw.BytesWritten(), fmt.Errorf("archive %s: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		return zw.BytesWritten(), err
	}
	return zw.BytesWritten(), nil
}

// DirSize sums the sizes of regular files under root.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
