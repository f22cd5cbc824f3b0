// Package utils provides image file IO for the CLI and server. The stitching
// core itself never touches the filesystem; segments are loaded here before
// invoking it and the composite is encoded here afterwards.
package utils

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
)

// DefaultJPEGQuality matches the capture app's composite encoding quality.
const DefaultJPEGQuality = 95

// IOError represents errors that occur while reading or writing image files.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("image io error in %s (%s): %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadSegment opens and decodes one segment image file.
func LoadSegment(path string) (*raster.Image, error) {
	if path == "" {
		return nil, &IOError{Operation: "load", Path: path, Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &IOError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, &IOError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &IOError{Operation: "decode", Path: path, Err: err}
	}
	return raster.FromImage(img)
}

// LoadSequence loads an ordered list of segment files. Order is capture
// order: strictly left-to-right along the leaf.
func LoadSequence(paths []string) (raster.Sequence, error) {
	images := make(raster.Sequence, 0, len(paths))
	for _, p := range paths {
		img, err := LoadSegment(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// SaveComposite encodes the composite to path. The format is chosen from the
// extension: .png writes PNG, everything else writes JPEG at the given
// quality (use DefaultJPEGQuality when in doubt; the light-table background
// is opaque so JPEG's missing alpha channel loses nothing).
func SaveComposite(img *raster.Image, path string, jpegQuality int) error {
	if img == nil {
		return &IOError{Operation: "save", Path: path, Err: errors.New("nil image")}
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}

	f, err := os.Create(path) //nolint:gosec // G304: Writing user-provided output path is expected
	if err != nil {
		return &IOError{Operation: "save", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		if err := png.Encode(f, img.NRGBA()); err != nil {
			return &IOError{Operation: "encode", Path: path, Err: err}
		}
		return nil
	}
	if err := jpeg.Encode(f, img.NRGBA(), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return &IOError{Operation: "encode", Path: path, Err: err}
	}
	return nil
}
