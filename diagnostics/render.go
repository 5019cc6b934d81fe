package diagnostics

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"go-passport-reader/document"
	"go-passport-reader/nfc"
)

const notAvailable = "-"

type section struct {
	title string
	rows  [][2]string
}

func (s *section) add(label, value string) {
	if value == "" {
		value = notAvailable
	}
	s.rows = append(s.rows, [2]string{label, value})
}

func (s *section) addBool(label string, value bool) {
	s.add(label, document.BoolToYesNo(value))
}

func (s *section) addInt(label string, value int) {
	if value == 0 {
		s.add(label, "")
		return
	}
	s.add(label, fmt.Sprintf("%d", value))
}

// RenderText lays the report out in the operator sections. The status line
// carries the user message in the requested language.
func RenderText(r *Report, lang language.Tag) string {
	status := nfc.ParseStatus(r.Session.Status)

	session := &section{title: "NFC Session"}
	session.add("Status", r.Session.Status)
	session.add("Message", status.UserMessage(lang))
	session.add("Access method", r.Session.AccessMethod)
	session.addBool("PACE supported", r.Session.PACESupported)
	session.add("PACE object id", r.Session.PACEObjectID)
	session.addBool("BAC attempted", r.Session.BACAttempted)
	session.add("Document type", r.Session.DocumentType)
	session.add("Issuing country", r.Session.IssuingCountry)
	session.add("Chip", r.Session.ChipInfo)
	session.add("Read time", r.Session.ReadTime)
	session.add("LDS version", r.Session.LDSVersion)

	keys := &section{title: "Access & MRZ Keys"}
	keys.add("Document number", r.Keys.DocumentNumberMasked)
	keys.add("Date of birth", r.Keys.DateOfBirthMasked)
	keys.add("Date of expiry", r.Keys.DateOfExpiryMasked)
	keys.add("MRZ key hash", r.Keys.MRZKeyHash)

	dg1 := &section{title: "DG1 (MRZ)"}
	dg1.addBool("Present", r.DG1.Present)
	if r.DG1.Present {
		dg1.addInt("Raw size (bytes)", r.DG1.RawSize)
		dg1.add("Format", r.DG1.Format)
		dg1.add("Document number", r.DG1.DocumentNumber)
		dg1.addBool("Matches entered number", r.DG1.DocumentNumberMatch)
		dg1.add("Issuing state", r.DG1.IssuingState)
		dg1.add("Nationality", r.DG1.Nationality)
		dg1.add("Surname", r.DG1.Surname)
		dg1.add("Given names", r.DG1.GivenNames)
		dg1.add("Date of birth", r.DG1.DateOfBirth)
		dg1.addBool("Matches entered birth date", r.DG1.DateOfBirthMatch)
		dg1.add("Sex", r.DG1.Sex)
		dg1.add("Date of expiry", r.DG1.DateOfExpiry)
		dg1.addBool("Matches entered expiry date", r.DG1.DateOfExpiryMatch)
		dg1.addBool("Expired", r.DG1.Expired)
		dg1.add("Optional data", r.DG1.OptionalDataRaw)
	}

	dg2 := &section{title: "DG2 (Face Image)"}
	dg2.addBool("Present", r.DG2.Present)
	if r.DG2.Present {
		dg2.add("Image format", r.DG2.ImageFormat)
		dg2.addInt("Width (px)", r.DG2.WidthPx)
		dg2.addInt("Height (px)", r.DG2.HeightPx)
		dg2.addInt("Size (bytes)", r.DG2.SizeBytes)
	}

	other := &section{title: "Other Data Groups"}
	other.addBool("DG3 (fingerprints, not read)", r.Other.DG3Present)
	other.addBool("DG11", r.Other.DG11Present)
	other.addBool("DG12", r.Other.DG12Present)
	other.addBool("DG14", r.Other.DG14Present)

	var b strings.Builder
	fmt.Fprintf(&b, "Report %s (%s)\n", r.ID, r.CreatedAt)
	for _, s := range []*section{session, keys, dg1, dg2, other} {
		writeSection(&b, s)
	}

	b.WriteString("\n== Errors ==\n")
	if len(r.Errors) == 0 {
		b.WriteString("none\n")
	}
	for i, e := range r.Errors {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, e.Stage, e.ErrorCode)
		if e.SW != "" {
			fmt.Fprintf(&b, " SW=%s", e.SW)
		}
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, ": %s", e.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeSection(b *strings.Builder, s *section) {
	width := 0
	for _, row := range s.rows {
		width = max(width, len(row[0]))
	}
	fmt.Fprintf(b, "\n== %s ==\n", s.title)
	for _, row := range s.rows {
		fmt.Fprintf(b, "%-*s  %s\n", width+1, row[0]+":", row[1])
	}
}
