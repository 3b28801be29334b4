package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TransferLetter carries the resolved fields printed on a decision letter.
type TransferLetter struct {
	Reference   string
	TeacherName string
	FromSchool  string
	ToSchool    string
	Status      string
	Reason      string
	DecidedAt   time.Time
}

// LetterExporter renders transfer decision letters as PDF documents.
type LetterExporter struct{}

// NewLetterExporter constructs a letter exporter.
func NewLetterExporter() *LetterExporter {
	return &LetterExporter{}
}

// Render produces the decision letter for a resolved transfer request.
func (e *LetterExporter) Render(letter TransferLetter) ([]byte, error) {
	if letter.Reference == "" {
		return nil, fmt.Errorf("letter requires a request reference")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "TEACHER TRANSFER DECISION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", letter.Reference), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", letter.DecidedAt.Format("2 January 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Teacher", letter.TeacherName},
		{"From school", letter.FromSchool},
		{"To school", letter.ToSchool},
		{"Decision", strings.ToUpper(letter.Status)},
	}
	pdf.SetFont("Arial", "", 11)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(120, 8, row[1], "1", 1, "L", false, 0, "")
	}

	if letter.Reason != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "Remarks", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, letter.Reason, "", "L", false)
	}

	pdf.Ln(14)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This letter was generated by the school system and requires no signature.", "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}
