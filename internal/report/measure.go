package report

import (
	"math"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
)

const (
	bodyFont     = "Helvetica"
	bodyFontSize = 10.0
)

// textMeasure counts printed lines with the same font metrics and wrapping
// rules fpdf's MultiCell uses for block bodies.
type textMeasure struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
	tr  func(string) string
}

var bodyText = sync.OnceValue(func() *textMeasure {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont(bodyFont, "", bodyFontSize)
	return &textMeasure{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
})

// lines returns how many lines MultiCell prints for s at ContentWidth.
func (m *textMeasure) lines(s string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, size := m.pdf.GetFontSize()
	wmax := int(math.Ceil((ContentWidth - 2*m.pdf.GetCellMargin()) * 1000 / size))
	txt := strings.ReplaceAll(m.tr(s), "\r", "")
	txt = strings.TrimSuffix(txt, "\n")

	n, sep, i, j, width := 1, -1, 0, 0, 0
	for i < len(txt) {
		c := txt[i]
		if c == '\n' {
			i++
			sep, j, width = -1, i, 0
			n++
			continue
		}
		if c == ' ' {
			sep = i
		}
		width += m.pdf.GetStringSymbolWidth(txt[i : i+1])
		if width <= wmax {
			i++
			continue
		}
		if sep == -1 {
			if i == j {
				i++
			}
		} else {
			i = sep + 1
		}
		sep, j, width = -1, i, 0
		n++
	}
	return n
}
