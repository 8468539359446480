package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/sticker/internal/pdf"
	"github.com/MeKo-Tech/sticker/internal/testutil"
	"github.com/MeKo-Tech/sticker/internal/utils"
)

// sceneConfig is the small high-contrast scene used by the features.
func sceneConfig() testutil.SceneConfig {
	cfg := testutil.DefaultSceneConfig()
	cfg.Size = testutil.SmallSize
	return cfg
}

// aSceneImage writes a synthetic photo with one subject.
func (testCtx *TestContext) aSceneImage(name string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return utils.SavePNG(path, testutil.GenerateScene(sceneConfig()))
}

// sceneImagesIn writes n scene images into dir.
func (testCtx *TestContext) sceneImagesIn(n int, dir string) error {
	if err := os.MkdirAll(testCtx.Path(dir), 0o755); err != nil {
		return err
	}
	for i := range n {
		if err := testCtx.aSceneImage(filepath.Join(dir, fmt.Sprintf("scene_%02d.png", i+1))); err != nil {
			return err
		}
	}
	return nil
}

// aBlankImage writes a uniform image without any subject.
func (testCtx *TestContext) aBlankImage(name string) error {
	img := testutil.CreateTestImage(testutil.SmallSize.Width, testutil.SmallSize.Height, color.White)
	return utils.SavePNG(testCtx.Path(name), img)
}

// aFileContaining writes raw text, e.g. to fake a corrupt image.
func (testCtx *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(testCtx.Path(name), []byte(content), 0o600)
}

// aPDFWithScenePages writes a PDF with one scene image per page.
func (testCtx *TestContext) aPDFWithScenePages(name string, pages int) error {
	figures := make([]pdf.Figure, pages)
	for i := range figures {
		figures[i] = pdf.Figure{Caption: fmt.Sprintf("Scene %d", i+1), Image: testutil.GenerateScene(sceneConfig())}
	}
	return pdf.WriteReportFile(testCtx.Path(name), figures)
}

// thePDFIsEncrypted encrypts name in place with the given passwords.
func (testCtx *TestContext) thePDFIsEncrypted(name, userPW, ownerPW string) error {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = userPW
	conf.OwnerPW = ownerPW
	path := testCtx.Path(name)
	return api.EncryptFile(path, path, conf)
}

// thePDFShouldHavePages checks the page count of a PDF.
func (testCtx *TestContext) thePDFShouldHavePages(name string, n int) error {
	pages, err := api.PageCountFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if pages != n {
		return fmt.Errorf("%s has %d pages, expected %d", name, pages, n)
	}
	return nil
}

// theImageShouldBe checks the dimensions of an image file.
func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	img, _, err := utils.LoadImage(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("%s is %dx%d, expected %dx%d", name, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// theImageCornerShouldBeTransparent checks the top-left pixel alpha.
func (testCtx *TestContext) theImageCornerShouldBeTransparent(name string) error {
	img, _, err := utils.LoadImage(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	b := img.Bounds()
	if _, _, _, a := img.At(b.Min.X, b.Min.Y).RGBA(); a != 0 {
		return fmt.Errorf("%s corner alpha is %d, expected 0", name, a)
	}
	return nil
}

// RegisterImageSteps registers input fixture and image output steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a scene image "([^"]*)"$`, testCtx.aSceneImage)
	sc.Step(`^(\d+) scene images? in "([^"]*)"$`, testCtx.sceneImagesIn)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
	sc.Step(`^the corner of "([^"]*)" should be transparent$`, testCtx.theImageCornerShouldBeTransparent)
}

// RegisterPDFSteps registers PDF fixture steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with (\d+) scene pages?$`, testCtx.aPDFWithScenePages)
	sc.Step(`^the PDF "([^"]*)" is encrypted with user password "([^"]*)" and owner password "([^"]*)"$`,
		testCtx.thePDFIsEncrypted)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
}
