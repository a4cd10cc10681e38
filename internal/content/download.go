package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DownloadFileToPath writes a file to dst, creating parent directories. A partially
// written dst is removed on failure.
func (c *Client) DownloadFileToPath(ctx context.Context, fileID, token, dst string) (int64, error) {
	body, err := c.OpenFile(ctx, fileID, token)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return n, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return n, nil
}
