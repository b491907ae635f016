package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/signflow/signflow-server/internal/document"
)

// BrandBoosterTemplateID selects the branded service agreement layout.
const BrandBoosterTemplateID = "us-brand-booster"

type agreementTemplate struct {
	name     string
	heading  string
	sections []func(w *writer, d *document.Document)
}

func (t agreementTemplate) render(w *writer, d *document.Document) {
	w.title(t.heading)
	w.para(d.Title)
	for _, s := range t.sections {
		s(w, d)
	}
}

// templateFor picks the branded layout when asked for explicitly or when the
// metadata carries its company/owner fields.
func templateFor(d *document.Document) agreementTemplate {
	if strings.EqualFold(d.Meta("templateId"), BrandBoosterTemplateID) ||
		d.Meta("clientCompanyName") != "" || d.Meta("businessOwnerName") != "" {
		return brandBooster
	}
	return generic
}

var generic = agreementTemplate{
	name:    "generic",
	heading: "SERVICE AGREEMENT",
	sections: []func(*writer, *document.Document){
		partiesSection,
		clientSection,
		projectSection,
		servicesSection,
		paymentSection,
		scopeSection,
		policySection,
		signaturesSection,
	},
}

var brandBooster = agreementTemplate{
	name:    BrandBoosterTemplateID,
	heading: "US BRAND BOOSTER - SERVICE AGREEMENT",
	sections: []func(*writer, *document.Document){
		partiesSection,
		clientSection,
		projectSection,
		servicesSection,
		paymentSection,
		scopeSection,
		policySection,
		signaturesSection,
	},
}

func meta(d *document.Document, keys ...string) string {
	for _, k := range keys {
		if v := d.Meta(k); v != "" {
			return v
		}
	}
	return ""
}

func partiesSection(w *writer, d *document.Document) {
	w.section("Parties")
	agency := meta(d, "agencyName")
	if agency == "" {
		agency = "the Agency"
	}
	client := meta(d, "clientCompanyName", "clientCompany", "clientName")
	if client == "" {
		client = "the Client"
	}
	w.para(fmt.Sprintf("This agreement is made between %s (\"Agency\") and %s (\"Client\").", agency, client))
	w.field("Agency contact", meta(d, "agencyEmail"))
	w.field("Prepared by", d.AgentName)
}

func clientSection(w *writer, d *document.Document) {
	w.section("Client Details")
	w.field("Company", meta(d, "clientCompanyName", "clientCompany"))
	w.field("Business Owner", meta(d, "businessOwnerName"))
	w.field("Name", meta(d, "clientName"))
	w.field("Email", meta(d, "clientEmail"))
	w.field("Phone", meta(d, "clientPhone"))
	w.field("Address", meta(d, "clientAddress"))
}

func projectSection(w *writer, d *document.Document) {
	w.section("Project Details")
	w.field("Project", meta(d, "projectName"))
	w.field("Package", meta(d, "packageName", "package"))
	w.field("Start date", meta(d, "startDate"))
	w.field("End date", meta(d, "endDate", "deliveryDate"))
	w.para(meta(d, "projectDescription", "description"))
}

func servicesSection(w *writer, d *document.Document) {
	w.section("Service Overview")
	items := serviceItems(d)
	if len(items) == 0 {
		w.para(meta(d, "serviceDescription", "services"))
		return
	}
	for _, it := range items {
		w.para("- " + it)
	}
}

// serviceItems flattens metadata.services, which may be a list of strings
// or of {name, description, price} objects.
func serviceItems(d *document.Document) []string {
	raw, ok := d.Metadata["services"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case map[string]interface{}:
			parts := []string{}
			for _, k := range []string{"name", "description", "price"} {
				if s := strings.TrimSpace(fmt.Sprint(t[k])); t[k] != nil && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out = append(out, strings.Join(parts, " - "))
			}
		}
	}
	return out
}

func paymentSection(w *writer, d *document.Document) {
	w.section("Payment")
	w.field("Total", meta(d, "totalAmount", "amount", "price"))
	w.field("Currency", meta(d, "currency"))
	w.field("Schedule", meta(d, "paymentSchedule", "paymentTerms"))
	w.field("Method", meta(d, "paymentMethod"))
}

func scopeSection(w *writer, d *document.Document) {
	w.section("Scope of Work")
	scope := meta(d, "scope", "scopeOfWork")
	if scope == "" {
		scope = "The Agency will deliver the services listed above. Work outside this list requires a written change request agreed by both parties."
	}
	w.para(scope)
}

func policySection(w *writer, d *document.Document) {
	w.section("Policies")
	policy := meta(d, "policy", "refundPolicy", "cancellationPolicy")
	if policy == "" {
		policy = "Payments are non-refundable once work has started. Either party may terminate with written notice; completed work up to the termination date remains billable."
	}
	w.para(policy)
}

func signaturesSection(w *writer, d *document.Document) {
	w.section("Signatures")
	w.para("By signing, the Client accepts the terms of this agreement.")
	w.field("Agency representative", d.AgentName)
	if sigURL := meta(d, "agentSignature"); sigURL != "" {
		drawAgentSignature(w.p, sigURL)
	}
	w.field("Date issued", time.UnixMilli(d.CreatedAt).UTC().Format("January 2, 2006"))
	w.p.Ln(10)
	w.field("Client", meta(d, "businessOwnerName", "clientName"))
}

// drawAgentSignature places the agent's stored signature image. Undecodable
// images are skipped; the agreement still renders.
func drawAgentSignature(p *fpdf.Fpdf, dataURL string) {
	sig, err := ParseSignature(dataURL)
	if err != nil {
		return
	}
	probe := fpdf.New("P", "pt", "A4", "")
	probe.RegisterImageOptionsReader("probe", fpdf.ImageOptions{ImageType: sig.ImageType}, bytes.NewReader(sig.Data))
	if probe.Err() {
		return
	}
	info := p.RegisterImageOptionsReader("agent-signature", fpdf.ImageOptions{ImageType: sig.ImageType}, bytes.NewReader(sig.Data))
	if info == nil {
		return
	}
	w, h := fitSignature(info.Width(), info.Height())
	p.ImageOptions("agent-signature", margin, p.GetY()+4, w, h, false, fpdf.ImageOptions{ImageType: sig.ImageType}, 0, "")
	p.SetY(p.GetY() + h + 8)
}
