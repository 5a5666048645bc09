// Package registry defines the contract with the external container-image
// registry and an S3-backed cache for exported image archives.
package registry

import (
	"context"
	"errors"
	"io"
)

// ErrImageNotFound reports that the registry does not know the tag. Callers
// must be able to tell this apart from transport failures: a missing image
// is a domain outcome, a broken connection is not.
var ErrImageNotFound = errors.New("image not found in registry")

// ImageRegistry is the collaborator that actually holds image bytes. All
// calls are blocking I/O and must be issued with a bounded context.
type ImageRegistry interface {
	// Pull fetches the tag into the local registry cache.
	Pull(ctx context.Context, tag string) error

	// Exists reports whether the tag is already present locally.
	Exists(ctx context.Context, tag string) (bool, error)

	// Export streams the image as a tar archive.
	Export(ctx context.Context, tag string) (io.ReadCloser, error)

	// Remove drops the tag from the local cache.
	Remove(ctx context.Context, tag string) error

	// Load imports an image from a tar archive stream.
	Load(ctx context.Context, r io.Reader) error
}
