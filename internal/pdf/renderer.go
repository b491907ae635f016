package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"github.com/google/uuid"
	"github.com/signflow/signflow-server/internal/document"
)

// Page geometry in points.
const (
	margin         = 50.0
	certPageWidth  = 595.28
	certPageHeight = 520.0
	// certMinSpace is the free space, measured up from the bottom edge,
	// needed to place the certificate on the last page.
	certMinSpace = 350.0
	sigScale     = 0.4
	sigMaxWidth  = 200.0
	sigMaxHeight = 80.0
)

// ErrInvalidImage is returned when the signature bytes cannot be decoded
// as an image.
var ErrInvalidImage = errors.New("invalid signature image")

// Renderer produces agreement PDFs and stamps signature certificates.
type Renderer struct {
	Footer string
}

func NewRenderer() *Renderer {
	return &Renderer{Footer: "This certificate confirms the agreement above was signed electronically. The signer's email address was verified before signing."}
}

// RenderBase lays out the agreement for d. The second result is the free
// space left on the last page, measured from its bottom edge; pass it back
// to EmbedSignature unchanged.
func (r *Renderer) RenderBase(ctx context.Context, d *document.Document) ([]byte, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	p := fpdf.New("P", "pt", "A4", "")
	p.SetMargins(margin, margin, margin)
	p.SetAutoPageBreak(true, margin)
	p.SetTitle(d.Title, true)
	p.SetCreator("signflow", true)
	p.AddPage()

	w := newWriter(p)
	templateFor(d).render(w, d)

	_, pageH := p.GetPageSize()
	lastY := pageH - p.GetY()

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("render agreement: %w", err)
	}
	return buf.Bytes(), lastY, nil
}

// EmbedSignature copies every page of base and appends the signature
// certificate. With a known lastY above the threshold the certificate goes
// on the last page, otherwise on a new page.
func (r *Renderer) EmbedSignature(ctx context.Context, base []byte, sig Signature, info document.SignerInfo, lastY *float64) (out []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(base, pdfMagic) {
		return nil, errors.New("embed signature: base is not a PDF")
	}
	// the importer panics on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("embed signature: %v", rec)
		}
	}()

	p := fpdf.New("P", "pt", "A4", "")
	p.SetAutoPageBreak(false, 0)
	p.SetMargins(margin, margin, margin)

	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(base)
	first := imp.ImportPageFromStream(p, &rs, 1, "/MediaBox")
	sizes := imp.GetPageSizes()
	if len(sizes) == 0 {
		return nil, errors.New("embed signature: base has no pages")
	}

	var lastW, lastH float64
	for page := 1; page <= len(sizes); page++ {
		tpl := first
		if page > 1 {
			tpl = imp.ImportPageFromStream(p, &rs, page, "/MediaBox")
		}
		box := sizes[page]["/MediaBox"]
		lastW, lastH = box["w"], box["h"]
		p.AddPageFormat("P", fpdf.SizeType{Wd: lastW, Ht: lastH})
		imp.UseImportedTemplate(p, tpl, 0, 0, lastW, lastH)
	}

	top := margin
	width := lastW
	if lastY != nil && *lastY > certMinSpace {
		top = lastH - *lastY + 20
	} else {
		p.AddPageFormat("P", fpdf.SizeType{Wd: certPageWidth, Ht: certPageHeight})
		width = certPageWidth
	}
	if err := r.drawCertificate(p, top, width, sig, info); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("embed signature: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCertificate(p *fpdf.Fpdf, top, pageW float64, sig Signature, info document.SignerInfo) error {
	w := newWriter(p)
	right := pageW - margin
	p.SetDrawColor(180, 180, 180)
	p.Line(margin, top, right, top)
	p.SetXY(margin, top+12)

	p.SetFont("Helvetica", "B", 14)
	p.SetTextColor(20, 20, 20)
	p.CellFormat(right-margin, 18, "DIGITAL SIGNATURE CERTIFICATE", "", 1, "C", false, 0, "")
	p.Ln(6)

	p.SetFont("Helvetica", "B", 11)
	p.CellFormat(0, 14, "Customer Information", "", 1, "L", false, 0, "")
	w.field("Company", info.Company)
	w.field("Business Owner", info.OwnerName)
	w.field("Email", info.Email)
	p.Ln(6)

	at := info.SignedAt
	if at.IsZero() {
		at = time.Now()
	}
	w.field("Digitally Signed", at.UTC().Format("January 2, 2006 15:04:05 MST"))
	w.field("Signed by", info.Email)
	p.Ln(8)

	name := "sig-" + uuid.NewString()
	img := p.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: sig.ImageType}, bytes.NewReader(sig.Data))
	if err := p.Error(); err != nil || img == nil {
		return fmt.Errorf("embed signature: %w: %v", ErrInvalidImage, err)
	}
	iw, ih := fitSignature(img.Width(), img.Height())
	p.ImageOptions(name, margin, p.GetY(), iw, ih, false, fpdf.ImageOptions{ImageType: sig.ImageType}, 0, "")
	p.SetY(p.GetY() + ih + 10)

	p.SetFont("Helvetica", "I", 8)
	p.SetTextColor(110, 110, 110)
	p.MultiCell(right-margin, 10, w.tr(r.Footer), "", "L", false)
	return p.Error()
}

// fitSignature scales the image and caps it to the signature box while
// keeping its aspect ratio.
func fitSignature(w, h float64) (float64, float64) {
	w, h = w*sigScale, h*sigScale
	if w <= 0 || h <= 0 {
		return sigMaxWidth, sigMaxHeight
	}
	if w > sigMaxWidth {
		h = h * sigMaxWidth / w
		w = sigMaxWidth
	}
	if h > sigMaxHeight {
		w = w * sigMaxHeight / h
		h = sigMaxHeight
	}
	return w, h
}

// writer wraps the common text primitives used by the templates.
type writer struct {
	p  *fpdf.Fpdf
	tr func(string) string
}

func newWriter(p *fpdf.Fpdf) *writer {
	return &writer{p: p, tr: p.UnicodeTranslatorFromDescriptor("")}
}

func (w *writer) title(s string) {
	w.p.SetFont("Helvetica", "B", 18)
	w.p.SetTextColor(20, 20, 20)
	w.p.MultiCell(0, 24, w.tr(s), "", "C", false)
	w.p.Ln(8)
}

func (w *writer) section(s string) {
	w.p.Ln(8)
	w.p.SetFont("Helvetica", "B", 12)
	w.p.SetTextColor(30, 30, 90)
	w.p.CellFormat(0, 16, w.tr(strings.ToUpper(s)), "B", 1, "L", false, 0, "")
	w.p.Ln(4)
	w.p.SetTextColor(20, 20, 20)
}

func (w *writer) para(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	w.p.SetFont("Helvetica", "", 10)
	w.p.MultiCell(0, 13, w.tr(s), "", "L", false)
	w.p.Ln(3)
}

// field prints "Label: value" and skips empty values.
func (w *writer) field(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	w.p.SetFont("Helvetica", "B", 10)
	lw := w.p.GetStringWidth(label+": ") + 2
	w.p.CellFormat(lw, 13, w.tr(label+":"), "", 0, "L", false, 0, "")
	w.p.SetFont("Helvetica", "", 10)
	w.p.MultiCell(0, 13, w.tr(value), "", "L", false)
}
