// Package render streams a document's pages as rasterized images plus any
// extractable text layer, through a PageRenderer interface, plus two
// concrete implementations: a no-op used by tests, and a placeholder used
// by the CLI when no real PDF rasterizer is wired in.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/jung-kurt/gofpdf"

	"github.com/hkshon115/semanticarranger/internal/model"
)

// PageRenderer produces a document's pages as they become available. The
// error channel carries at most one terminal error; both channels are
// closed when rendering completes or fails.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdfPath string) (<-chan model.PageInput, <-chan error)
}

// NullRenderer emits no pages; useful for orchestrator tests that supply
// PageInputs directly rather than through a renderer.
type NullRenderer struct{}

func (NullRenderer) RenderPages(ctx context.Context, pdfPath string) (<-chan model.PageInput, <-chan error) {
	pages := make(chan model.PageInput)
	errs := make(chan error)
	close(pages)
	close(errs)
	return pages, errs
}

// PlaceholderRenderer synthesizes PageCount (--pages on the CLI) blank
// raster pages instead of rasterizing pdfPath, which is never opened or
// parsed and only appears in each page's placeholder text. It is not a real PDF
// rasterizer or OCR engine; it exists so cmd/extractpipeline can run
// end-to-end without one.
type PlaceholderRenderer struct {
	PageCount  int
	PageWidth  int
	PageHeight int
}

func (p PlaceholderRenderer) RenderPages(ctx context.Context, pdfPath string) (<-chan model.PageInput, <-chan error) {
	pages := make(chan model.PageInput)
	errs := make(chan error)

	width, height := p.PageWidth, p.PageHeight
	if width <= 0 {
		width = 612
	}
	if height <= 0 {
		height = 792
	}
	count := p.PageCount
	if count <= 0 {
		count = 1
	}

	go func() {
		defer close(pages)
		defer close(errs)
		for i := 0; i < count; i++ {
			img, err := blankRasterPNG(width, height, i)
			if err != nil {
				select {
				case errs <- fmt.Errorf("render placeholder page %d: %w", i, err):
				case <-ctx.Done():
				}
				return
			}
			page := model.PageInput{
				PageIndex:  i,
				PageWidth:  width,
				PageHeight: height,
				Image:      img,
				ImageMIME:  "image/png",
				Text:       fmt.Sprintf("(placeholder page %d of %s, no text layer available)", i, pdfPath),
			}
			select {
			case pages <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	return pages, errs
}

// blankRasterPNG draws a uniform light-gray raster, the simplest stand-in
// for an un-rasterized page; the pipeline never inspects pixel content for
// placeholder pages, only the fact that an image is present.
func blankRasterPNG(width, height, pageIndex int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 240, G: 240, B: 240, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteManifestPDF writes a single-page, human-readable PDF naming the
// source path and the number of placeholder pages synthesized. It is this
// package's only use of gofpdf: it never rasterizes input, only reports on
// what was synthesized. The CLI does not call it.
func WriteManifestPDF(pdfPath string, pageCount int, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Placeholder render manifest", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.Ln(4)
	pdf.MultiCell(0, 5, fmt.Sprintf("Source path: %s", pdfPath), "", "L", false)
	pdf.MultiCell(0, 5, fmt.Sprintf("Synthesized pages: %d", pageCount), "", "L", false)
	pdf.MultiCell(0, 5, "No real rasterization was performed; every page is a uniform placeholder raster.", "", "L", false)
	return pdf.OutputFileAndClose(outPath)
}
