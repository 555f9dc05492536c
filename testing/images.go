package testing

import (
	"io"
	"testing"

	"github.com/pzl/ext2img/disks"
	"github.com/pzl/ext2img/file_systems/ext2"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// NewDiskImage formats a fresh single-group ext2 image using the predefined
// geometry named by `slug`. It is guaranteed to either return a valid image
// or fail the test and abort.
func NewDiskImage(t *testing.T, slug string) *ext2.Image {
	geometry, err := disks.GetPredefinedImageGeometry(slug)
	require.NoErrorf(t, err, "unknown image geometry %q", slug)

	img, err := ext2.Format(geometry.TotalBlocks, geometry.TotalInodes)
	require.NoErrorf(t, err, "formatting a %q image failed", slug)

	require.NoError(t, ext2.Validate(img), "freshly formatted image is inconsistent")
	return img
}

// NewDiskImageStream wraps an image with a fixed-size stream over its
// backing bytes, the same surface a command driver reads and writes through.
//
//   - Writes through the stream are visible to the image and vice versa.
//   - The stream's size is fixed; writing past the end triggers an error.
func NewDiskImageStream(t *testing.T, img *ext2.Image) io.ReadWriteSeeker {
	require.NotEmpty(t, img.Bytes(), "image has no backing bytes")
	return bytesextra.NewReadWriteSeeker(img.Bytes())
}

// RequireConsistent fails the test if the image violates any on-disk
// invariant. Call it after every mutating operation under test.
func RequireConsistent(t *testing.T, img *ext2.Image) {
	t.Helper()
	require.NoError(t, ext2.Validate(img))
}
