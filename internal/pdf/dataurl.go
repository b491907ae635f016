package pdf

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// PDFDataURLPrefix marks a stored document that already carries its PDF.
const PDFDataURLPrefix = "data:application/pdf"

var pdfMagic = []byte("%PDF-")

// ErrInvalidDataURL is returned for payloads that are not base64 data URLs
// (or bare base64).
var ErrInvalidDataURL = errors.New("invalid data url")

// DecodeDataURL splits "data:<mime>;base64,<payload>" and decodes the
// payload. A bare base64 string is accepted with an empty mime type.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, ErrInvalidDataURL
	}
	mime := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return "", nil, ErrInvalidDataURL
		}
		header := s[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
		}
		mime = strings.ToLower(strings.TrimSuffix(header, ";base64"))
		payload = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	return mime, data, nil
}

// EncodePDFDataURL renders PDF bytes as a data URL.
func EncodePDFDataURL(b []byte) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(b)
}

// StoredPDF returns the PDF bytes carried by a document's file URL. It
// accepts PDF data URLs and bare base64 that decodes to a PDF.
func StoredPDF(fileURL string) ([]byte, bool) {
	s := strings.TrimSpace(fileURL)
	if s == "" {
		return nil, false
	}
	if !strings.HasPrefix(s, PDFDataURLPrefix) && !strings.HasPrefix(s, "JVBERi") {
		return nil, false
	}
	_, data, err := DecodeDataURL(s)
	if err != nil || !bytes.HasPrefix(data, pdfMagic) {
		return nil, false
	}
	return data, true
}

// Signature is a decoded signature image.
type Signature struct {
	Data      []byte
	ImageType string // "PNG" or "JPG"
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// ParseSignature decodes a drawn or uploaded signature. Bare base64 is
// accepted. The image type comes from the decoded bytes, so a mislabelled
// PNG still works while non-image payloads are rejected.
func ParseSignature(dataURL string) (Signature, error) {
	mime, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return Signature{}, err
	}
	switch mime {
	case "", "image/png", "image/jpeg", "image/jpg":
	default:
		return Signature{}, fmt.Errorf("%w: unsupported image type %q", ErrInvalidDataURL, mime)
	}
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return Signature{Data: data, ImageType: "PNG"}, nil
	case bytes.HasPrefix(data, jpegMagic):
		return Signature{Data: data, ImageType: "JPG"}, nil
	default:
		return Signature{}, fmt.Errorf("%w: payload is not a PNG or JPEG image", ErrInvalidDataURL)
	}
}
