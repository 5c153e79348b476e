// Package pdfexport renders a centre's activity list as a downloadable PDF.
package pdfexport

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"nearbybot/pkg/model"
)

const sessionFormat = "Mon, 2 Jan 15:04"

// Exporter produces activity-list documents.
type Exporter struct{}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{}
}

// Render produces a PDF listing the centre's upcoming activities. Activities
// with no scheduled date at or after now are omitted; each remaining
// activity's sessions are listed chronologically. When nothing is upcoming,
// the document carries a single notice instead.
func (e *Exporter) Render(centre *model.Centre, activities []*model.Activity, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	// Header: centre name and contact details
	pdf.SetFont("Helvetica", "BU", 18)
	pdf.MultiCell(0, 9, fmt.Sprintf("Activities at %s", centre.Name), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	if centre.Address != "" {
		pdf.MultiCell(0, 6, "Address: "+centre.Address, "", "L", false)
	}
	if centre.Phone != "" {
		pdf.MultiCell(0, 6, "Phone: "+centre.Phone, "", "L", false)
	}
	if centre.Email != "" {
		pdf.MultiCell(0, 6, "Email: "+centre.Email, "", "L", false)
	}
	pdf.Ln(4)

	printed := 0
	for _, a := range activities {
		upcoming := a.UpcomingDates(now)
		if len(upcoming) == 0 {
			continue
		}

		pdf.SetFont("Helvetica", "B", 14)
		name := a.Name
		if name == "" {
			name = "Untitled Activity"
		}
		pdf.MultiCell(0, 7, name, "", "L", false)

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "Upcoming Sessions:", "", "L", false)
		for _, d := range upcoming {
			line := "- " + d.Format(sessionFormat)
			if a.TimeOfDay != "" {
				line += fmt.Sprintf(" (%s)", a.TimeOfDay)
			}
			pdf.MultiCell(0, 6, line, "", "L", false)
		}

		if a.RecommendedAudience != "" {
			pdf.MultiCell(0, 6, "Recommended For: "+a.RecommendedAudience, "", "L", false)
		}
		if a.SignUpInstruction != "" {
			pdf.MultiCell(0, 6, "Sign-up: "+a.SignUpInstruction, "", "L", false)
		}
		if a.Description != "" {
			pdf.Ln(1)
			pdf.MultiCell(0, 5, a.Description, "", "L", false)
		}

		pdf.Ln(3)
		pdf.SetDrawColor(204, 204, 204)
		left, _, right, _ := pdf.GetMargins()
		w, _ := pdf.GetPageSize()
		pdf.Line(left, pdf.GetY(), w-right, pdf.GetY())
		pdf.Ln(4)

		printed++
	}

	if printed == 0 {
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 6, "No upcoming activities found.", "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf rendering failed: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Filename derives a safe attachment name from the centre name.
func Filename(centreName string) string {
	safe := strings.Trim(unsafeFilename.ReplaceAllString(centreName, "_"), "_")
	if safe == "" {
		safe = "centre"
	}
	return "activities_" + safe + ".pdf"
}
