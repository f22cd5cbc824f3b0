package raster

import (
	"errors"
	"fmt"
)

// Sequence is an ordered list of segment images in capture order, assumed
// strictly left-to-right along the leaf. All elements normally share the same
// width (the capture crop rectangle is fixed); heights may vary slightly, so
// consumers size canvases to the maximum height.
type Sequence []*Image

// Validate checks the sequence for use by the alignment and stitching stages.
// Width mismatches are tolerated but nil entries are not.
func (s Sequence) Validate() error {
	if len(s) == 0 {
		return &ProcessingError{Operation: "validate", Err: errors.New("no images in sequence")}
	}
	for i, img := range s {
		if img == nil {
			return &ProcessingError{Operation: "validate", Err: fmt.Errorf("segment %d is nil", i)}
		}
	}
	return nil
}

// MaxHeight returns the tallest segment height, or 0 for an empty sequence.
func (s Sequence) MaxHeight() int {
	maxH := 0
	for _, img := range s {
		if img != nil && img.Height() > maxH {
			maxH = img.Height()
		}
	}
	return maxH
}

// TotalPixels returns the summed pixel count across all segments.
func (s Sequence) TotalPixels() int64 {
	var n int64
	for _, img := range s {
		if img != nil {
			n += int64(img.Width()) * int64(img.Height())
		}
	}
	return n
}
