package testutil

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// WriteSegmentPNG saves a segment under dir with the given name and returns
// the full path.
func WriteSegmentPNG(t *testing.T, dir, name string, img *raster.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, f.Close())
	}()

	require.NoError(t, png.Encode(f, img.NRGBA()), "Failed to encode PNG image")
	return path
}

// RequireSamePixels fails the test unless both images have identical
// dimensions and pixel-identical content.
func RequireSamePixels(t *testing.T, want, got *raster.Image) {
	t.Helper()

	require.Equal(t, want.Width(), got.Width(), "width mismatch")
	require.Equal(t, want.Height(), got.Height(), "height mismatch")
	for y := range want.Height() {
		for x := range want.Width() {
			wr, wg, wb, wa := want.RGBAAt(x, y)
			gr, gg, gb, ga := got.RGBAAt(x, y)
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel mismatch at (%d,%d): want %d,%d,%d,%d got %d,%d,%d,%d",
					x, y, wr, wg, wb, wa, gr, gg, gb, ga)
			}
		}
	}
}
