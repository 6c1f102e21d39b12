package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders an agenda into a tabular PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// column widths sum to 190mm, the printable width of A4 with 10mm margins.
var pdfColWidths = []float64{28, 70, 24, 24, 20, 24}

// Render creates a PDF agenda with a date-range title line and one table row
// per occurrence.
func (e *PDFExporter) Render(agenda Agenda) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	title := fmt.Sprintf("AGENDA %s - %s",
		agenda.From.Format("2006-01-02"), agenda.To.Format("2006-01-02"))
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	for i, header := range agendaHeaders {
		pdf.CellFormat(pdfColWidths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, item := range agenda.Items {
		for i, value := range item.row() {
			pdf.CellFormat(pdfColWidths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
