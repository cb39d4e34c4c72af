// Package reporting renders the current card snapshot as a printable summary
// sheet.
package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/cardbridge/cardbridge/internal/core/domain"
)

// PDFExporter exports card snapshots to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportCardSummary generates a one-page summary sheet for a read card.
// The photo is embedded when the snapshot carries one.
func (e *PDFExporter) ExportCardSummary(record *domain.CardRecord, readAt time.Time) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("no card record to export")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, readAt)
	e.addPhoto(pdf, record)
	e.addFields(pdf, record)
	e.addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, readAt time.Time) {
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 12, "National ID Card Summary", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	if !readAt.IsZero() {
		pdf.CellFormat(0, 6, fmt.Sprintf("Read at: %s", readAt.Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addPhoto(pdf *gofpdf.Fpdf, record *domain.CardRecord) {
	if !record.HasPhoto() {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("card-photo", opts, bytes.NewReader(record.Photo))
	// Standard ID photo proportions, pinned to the top-right corner.
	pdf.ImageOptions("card-photo", 160, 20, 30, 37.5, false, opts, 0, "")
}

func (e *PDFExporter) addFields(pdf *gofpdf.Fpdf, record *domain.CardRecord) {
	rows := []struct {
		label string
		value string
	}{
		{"Citizen ID", record.CID},
		{"Name (Thai)", record.ThaiName},
		{"Name (English)", record.EnglishName},
		{"Date of Birth", record.DateOfBirth},
		{"Gender", record.Gender},
		{"Address", record.Address},
		{"Issuer", record.Issuer},
		{"Issue Date", record.IssueDate},
		{"Expire Date", record.ExpireDate},
	}

	// The standard PDF fonts are Latin-1 only; Thai text is carried through
	// gofpdf's UTF-8 translator so it degrades readably instead of breaking
	// the document.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, row := range rows {
		if row.value == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(45, 9, row.label, "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(95, 9, tr(row.value), "", "L", false)
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf) {
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 6, "Exported by cardbridge. Handle according to your data protection policy.", "", 1, "C", false, 0, "")
}
