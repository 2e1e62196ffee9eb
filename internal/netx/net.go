// Package netx pushes local files to presigned object-store URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultClient is used when PutFile is given a nil client.
var DefaultClient = &http.Client{}

// PutFile streams localPath to a presigned PUT url. An empty contentType is
// sniffed from the file. Any 2xx status counts as success; other statuses
// are returned as errors carrying the start of the response body.
func PutFile(ctx context.Context, client *http.Client, url, localPath, contentType string) (int64, error) {
	if client == nil {
		client = DefaultClient
	}

	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if contentType == "" {
		mt, err := mimetype.DetectReader(f)
		if err != nil {
			return 0, fmt.Errorf("detect content type: %w", err)
		}
		contentType = mt.String()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return 0, err
	}
	req.ContentLength = fi.Size()
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return fi.Size(), nil
}
