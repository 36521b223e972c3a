// Package receipt formats a finalized application into a printable HTML
// receipt. It is a pure consumer of the draft: no decision logic lives here.
package receipt

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/pricing"
)

var visaTypeLabels = map[model.VisaType]string{
	model.VisaGeneral: "E-Visa (standard processing)",
	model.VisaUrgent:  "E-Visa (urgent processing)",
	model.VisaTransit: "Moc Bai transit visa run",
}

// RenderHTML produces the sanitized HTML receipt for a submitted draft.
func RenderHTML(d *model.Draft) []byte {
	md := renderMarkdown(d)

	extensions := blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags,
	})
	unsafe := blackfriday.Run([]byte(md), blackfriday.WithRenderer(renderer), blackfriday.WithExtensions(extensions))

	// Applicant-entered fields end up in the receipt, so sanitize.
	return bluemonday.UGCPolicy().SanitizeBytes(unsafe)
}

func renderMarkdown(d *model.Draft) string {
	b := pricing.Compute(d)
	sel := d.VisaSelection

	var sb strings.Builder
	sb.WriteString("# Visa Application Receipt\n\n")
	fmt.Fprintf(&sb, "**Application ID:** %s\n\n", d.ApplicationID)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", d.Status)

	sb.WriteString("## Application\n\n")
	fmt.Fprintf(&sb, "- Visa: %s\n", labelFor(sel.VisaType))
	fmt.Fprintf(&sb, "- Entries: %s\n", sel.VisaDurationType)
	if sel.ProcessingType != "" {
		fmt.Fprintf(&sb, "- Processing: %s\n", sel.ProcessingType)
	}
	if sel.VisaType == model.VisaTransit {
		fmt.Fprintf(&sb, "- Party size: %d\n", sel.TransitPeopleCount)
		if sel.TransitVehicleType != "" {
			fmt.Fprintf(&sb, "- Vehicle: %s\n", sel.TransitVehicleType)
		}
	}

	sb.WriteString("\n## Applicant\n\n")
	fmt.Fprintf(&sb, "- Name: %s\n", d.PersonalInfo.FullName)
	fmt.Fprintf(&sb, "- Email: %s\n", d.PersonalInfo.Email)
	fmt.Fprintf(&sb, "- Phone: %s\n", d.PersonalInfo.Phone)

	sb.WriteString("\n## Travel\n\n")
	fmt.Fprintf(&sb, "- Entry date: %s\n", d.TravelInfo.EntryDate)
	fmt.Fprintf(&sb, "- Entry port: %s\n", d.TravelInfo.EntryPort)

	if len(d.AdditionalServices) > 0 {
		sb.WriteString("\n## Additional services\n\n")
		for _, id := range d.AdditionalServices {
			if price, ok := pricing.ServicePrice(id); ok {
				fmt.Fprintf(&sb, "- %s: %s KRW\n", id, price.StringFixed(0))
			}
		}
	}

	sb.WriteString("\n## Price\n\n")
	fmt.Fprintf(&sb, "- Base: %s %s\n", b.BasePrice.StringFixed(0), b.Currency)
	if !b.VehicleSurcharge.IsZero() {
		fmt.Fprintf(&sb, "- Vehicle surcharge: %s %s\n", b.VehicleSurcharge.StringFixed(0), b.Currency)
	}
	if !b.ServicesTotal.IsZero() {
		fmt.Fprintf(&sb, "- Services: %s KRW\n", b.ServicesTotal.StringFixed(0))
	}
	fmt.Fprintf(&sb, "- **Total: %s %s**\n", b.Total.StringFixed(0), b.Currency)

	if len(d.Documents) > 0 {
		sb.WriteString("\n## Documents\n\n")
		for _, role := range sel.RequiredRoles() {
			if rec, ok := d.Documents[role]; ok && !rec.Empty() {
				fmt.Fprintf(&sb, "- %s: %s (%d KB)\n", role, rec.FileName, rec.FileSize/1024)
			}
		}
	}

	return sb.String()
}

func labelFor(t model.VisaType) string {
	if label, ok := visaTypeLabels[t]; ok {
		return label
	}
	return string(t)
}
