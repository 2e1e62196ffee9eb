// Package objectstore is the pipeline's only door to the remote object
// store. Transfer methods report failure as a boolean and log the cause;
// nothing raises past this boundary in normal operation.
package objectstore

import (
	"context"
	"strings"
)

// Store is a synchronous object-store client addressed by relative keys.
type Store interface {
	// Exists is a best-effort check: any error counts as absent.
	Exists(ctx context.Context, key string) bool
	// Stat distinguishes confirmed absence (false, nil) from failures.
	Stat(ctx context.Context, key string) (bool, error)
	// Upload streams localPath to key. The local file is never touched.
	Upload(ctx context.Context, localPath, key string) bool
	// Download writes key to localPath, creating parent directories.
	// A failed download leaves no file at localPath.
	Download(ctx context.Context, key, localPath string) bool
	// Delete removes key; deleting an absent key succeeds.
	Delete(ctx context.Context, key string) bool
	// PublicURL derives the public address of key without I/O.
	PublicURL(key string) string
	// PresignedUploadURL signs a direct PUT of key with contentType.
	PresignedUploadURL(ctx context.Context, key, contentType string, ttlMinutes int) (string, error)
}

// TTL bounds of presigned upload URLs, in minutes.
const (
	MinPresignTTL = 5
	MaxPresignTTL = 1440
)

// ClampTTL forces ttlMinutes into [MinPresignTTL, MaxPresignTTL].
func ClampTTL(ttlMinutes int) int {
	if ttlMinutes < MinPresignTTL {
		return MinPresignTTL
	}
	if ttlMinutes > MaxPresignTTL {
		return MaxPresignTTL
	}
	return ttlMinutes
}

// JoinURL joins URL parts with exactly one slash between non-empty parts.
func JoinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out += "/" + p
	}
	return out
}

// ObjectKey prefixes a relative key with the configured root.
func ObjectKey(root, key string) string {
	root = strings.Trim(root, "/")
	key = strings.TrimLeft(key, "/")
	if root == "" {
		return key
	}
	return root + "/" + key
}
