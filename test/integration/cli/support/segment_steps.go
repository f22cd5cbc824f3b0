package support

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/leafstitch/internal/raster"
	"github.com/MeKo-Tech/leafstitch/internal/testutil"
)

// RegisterSegmentSteps wires the synthetic segment fixture and composite
// assertion steps.
func (testCtx *TestContext) RegisterSegmentSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a segment "([^"]*)" of size (\d+)x(\d+) with a midrib at row (\d+)$`, testCtx.aSegmentWithMidrib)
	sc.Step(`^a solid segment "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aSolidSegment)
	sc.Step(`^an invalid image file "([^"]*)"$`, testCtx.anInvalidImageFile)
	sc.Step(`^the composite "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theCompositeShouldBe)
	sc.Step(`^the composite "([^"]*)" should be at least (\d+) pixels tall$`, testCtx.theCompositeShouldBeAtLeastTall)
}

func (testCtx *TestContext) writeSegment(name string, img *raster.Image) error {
	path := testCtx.GetTempPath(name)
	f, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img.NRGBA()); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	testCtx.CreatedFiles = append(testCtx.CreatedFiles, path)
	return nil
}

func (testCtx *TestContext) aSegmentWithMidrib(name string, width, height, row int) error {
	return testCtx.writeSegment(name, testutil.MidribSegment(width, height, row, 8))
}

func (testCtx *TestContext) aSolidSegment(name string, width, height int) error {
	return testCtx.writeSegment(name, testutil.SolidSegment(width, height, testutil.LeafTissue))
}

func (testCtx *TestContext) anInvalidImageFile(name string) error {
	path := testCtx.GetTempPath(name)
	if err := os.WriteFile(path, []byte("this is not an image"), 0o600); err != nil {
		return err
	}
	testCtx.CreatedFiles = append(testCtx.CreatedFiles, path)
	return nil
}

func (testCtx *TestContext) decodeComposite(name string) (image.Image, error) {
	path := testCtx.substitute(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(testCtx.TempDir, path)
	}
	f, err := os.Open(path) //nolint:gosec // G304: Test file read with controlled path
	if err != nil {
		return nil, fmt.Errorf("failed to open composite %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode composite %s: %w", path, err)
	}
	return img, nil
}

func (testCtx *TestContext) theCompositeShouldBe(name string, width, height int) error {
	img, err := testCtx.decodeComposite(name)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("composite is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return nil
}

func (testCtx *TestContext) theCompositeShouldBeAtLeastTall(name string, minHeight int) error {
	img, err := testCtx.decodeComposite(name)
	if err != nil {
		return err
	}
	if got := img.Bounds().Dy(); got < minHeight {
		return fmt.Errorf("composite is %d pixels tall, expected at least %d", got, minHeight)
	}
	return nil
}
