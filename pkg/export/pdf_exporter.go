package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Certificate holds the fields printed on a clearance certificate.
type Certificate struct {
	Institution   string
	StudentName   string
	StudentNumber string
	BatchCode     string
	Program       string
	ClassEndDate  *time.Time
	ClearedAt     time.Time
	Reference     string
}

// PDFExporter renders reports and certificates as PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// RenderCertificate produces a single page clearance certificate.
func (e *PDFExporter) RenderCertificate(cert Certificate) ([]byte, error) {
	if strings.TrimSpace(cert.StudentName) == "" {
		return nil, fmt.Errorf("certificate requires a student name")
	}
	if cert.ClearedAt.IsZero() {
		return nil, fmt.Errorf("certificate requires a clearance date")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	if cert.Institution != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, cert.Institution, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 16, "CLEARANCE CERTIFICATE", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 7, "This certifies that the student named below has settled all fees for the class listed and has been cleared by the finance office.", "", "L", false)
	pdf.Ln(6)

	rows := [][2]string{
		{"Student", cert.StudentName},
		{"Student number", dashIfEmpty(cert.StudentNumber)},
		{"Batch", dashIfEmpty(cert.BatchCode)},
		{"Program", dashIfEmpty(cert.Program)},
		{"Class ended", formatDate(cert.ClassEndDate)},
		{"Cleared on", cert.ClearedAt.Format("02 January 2006")},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 8, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, row[1], "", 1, "", false, 0, "")
	}

	if cert.Reference != "" {
		pdf.Ln(10)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "Reference: "+cert.Reference, "", 1, "R", false, 0, "")
	}

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02 January 2006")
}
