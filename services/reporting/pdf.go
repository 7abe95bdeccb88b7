package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// RenderPDF lays the report out on Letter pages: title, generation time,
// then each section heading followed by its body.
func RenderPDF(r models.Report) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("CyberGuardian", true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetModificationDate(r.GeneratedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 20, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 14, "Generated at: "+r.GeneratedAt.Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(12)

	for _, sec := range r.Sections {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 16, tr(sec.Heading), "", "L", false)
		pdf.SetFont("Courier", "", 9)
		pdf.MultiCell(0, 11, tr(sec.Body), "", "L", false)
		pdf.Ln(10)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report %s: %w", r.ID, err)
	}
	return buf.Bytes(), nil
}
