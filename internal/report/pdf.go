package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// RenderPDF draws the compiled pages onto A4 sheets and writes the PDF to w.
// Blocks are placed at the offsets chosen by Compile.
func RenderPDF(doc *Document, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(false, Margin)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	images := 0
	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, b := range page.Blocks {
			y := Margin + b.Top
			pdf.SetXY(Margin, y)

			switch b.Kind {
			case BlockTitle:
				pdf.SetFont("Helvetica", "B", 18)
				pdf.CellFormat(ContentWidth, TitleHeight-4, tr(b.Title), "", 1, "C", false, 0, "")
				if doc.Date != "" {
					pdf.SetFont("Helvetica", "", 9)
					pdf.CellFormat(ContentWidth, 4, tr(doc.Date), "", 1, "C", false, 0, "")
				}
				continue
			case BlockHeading:
				pdf.SetFont("Helvetica", "B", 14)
				pdf.CellFormat(ContentWidth, HeadingHeight-2, tr(b.Title), "B", 1, "L", false, 0, "")
				continue
			}

			if b.Title != "" {
				pdf.SetFont("Helvetica", "B", 11)
				pdf.CellFormat(ContentWidth, LineHeight, tr(b.Title), "", 1, "L", false, 0, "")
			}
			pdf.SetFont(bodyFont, "", bodyFontSize)
			for _, l := range b.Lines {
				pdf.SetX(Margin)
				pdf.MultiCell(ContentWidth, LineHeight, tr(l.Label+": "+l.Value), "", "L", false)
			}
			if b.Text != "" {
				pdf.SetX(Margin)
				pdf.MultiCell(ContentWidth, LineHeight, tr(b.Text), "", "L", false)
			}

			if b.Photo != nil {
				images++
				name := fmt.Sprintf("photo-%d", images)
				opt := fpdf.ImageOptions{ImageType: b.Photo.ImageType()}
				info := pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(b.Photo.Data))
				if info == nil || pdf.Err() {
					// an image fpdf cannot decode is dropped like any other unresolvable photo
					pdf.ClearError()
					continue
				}
				width, height := fitImage(info.Width(), info.Height(), ContentWidth, PhotoHeight)
				top := y + b.Height - PhotoHeight - BlockPadding
				pdf.ImageOptions(name, Margin+(ContentWidth-width)/2, top, width, height, false, opt, 0, "")
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return pdf.Output(w)
}

// fitImage scales w x h to fit inside maxW x maxH, keeping the aspect ratio.
func fitImage(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxH, maxH
	}
	scale := maxH / h
	if w*scale > maxW {
		scale = maxW / w
	}
	return w * scale, h * scale
}
