package cli

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dmitrijs2005/mediaoffload/internal/objectstore"
)

// presign prints a presigned PUT URL.
//
//	presign <path> [--content-type string] [--ttl minutes]
func (a *App) presign(ctx context.Context, args []string) (int, error) {
	fs := flagSet("presign")
	contentType := fs.String("content-type", "application/octet-stream", "content type the upload must carry")
	ttl := fs.Int("ttl", 60, "URL validity in minutes (5..1440)")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("%w: presign <path> [--content-type type] [--ttl minutes]", errUsage)
	}

	svc, release, err := a.services(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	url, err := svc.Signer.PresignedUploadURL(ctx, objectKey(fs.Arg(0)), *contentType, objectstore.ClampTTL(*ttl))
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(a.out, url)
	return 0, nil
}

// push uploads a local file through a presigned URL.
//
//	push <local> <path> [--content-type string]
func (a *App) push(ctx context.Context, args []string) (int, error) {
	fs := flagSet("push")
	contentType := fs.String("content-type", "", "content type (sniffed when empty)")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if fs.NArg() != 2 {
		return 0, fmt.Errorf("%w: push <local> <path> [--content-type type]", errUsage)
	}
	local, key := fs.Arg(0), objectKey(fs.Arg(1))

	svc, release, err := a.services(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	signedType := *contentType
	if signedType == "" {
		mt, err := mimetype.DetectFile(local)
		if err != nil {
			return 0, err
		}
		signedType = mt.String()
	}
	url, err := svc.Signer.PresignedUploadURL(ctx, key, signedType, objectstore.MinPresignTTL)
	if err != nil {
		return 0, err
	}

	n, err := putFile(ctx, nil, url, local, signedType)
	if err != nil {
		a.printTally(tally{failed: 1})
		return 1, err
	}
	fmt.Fprintf(a.out, "Uploaded %s (%d bytes)\n", key, n)
	a.printTally(tally{success: 1})
	return 0, nil
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
}
