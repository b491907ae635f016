package pdf

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	mime, data, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("abc"), data)

	mime, data, err = DecodeDataURL(base64.StdEncoding.EncodeToString([]byte("bare")))
	require.NoError(t, err)
	assert.Empty(t, mime)
	assert.Equal(t, []byte("bare"), data)

	for _, in := range []string{"", "data:image/png;base64", "data:text/plain,hello", "!!!"} {
		_, _, err := DecodeDataURL(in)
		assert.ErrorIs(t, err, ErrInvalidDataURL, in)
	}
}

func TestStoredPDF(t *testing.T) {
	doc := []byte("%PDF-1.4 minimal")
	b, ok := StoredPDF(EncodePDFDataURL(doc))
	require.True(t, ok)
	assert.Equal(t, doc, b)

	b, ok = StoredPDF(base64.StdEncoding.EncodeToString(doc))
	require.True(t, ok, "bare base64 starting with JVBERi")
	assert.Equal(t, doc, b)

	_, ok = StoredPDF("https://example.com/agreement.pdf")
	assert.False(t, ok)
	_, ok = StoredPDF("data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("not a pdf")))
	assert.False(t, ok)
	_, ok = StoredPDF("")
	assert.False(t, ok)
}

func TestParseSignature(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	jpg := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})

	sig, err := ParseSignature("data:image/png;base64," + png)
	require.NoError(t, err)
	assert.Equal(t, "PNG", sig.ImageType)

	sig, err = ParseSignature("data:image/jpeg;base64," + jpg)
	require.NoError(t, err)
	assert.Equal(t, "JPG", sig.ImageType)

	sig, err = ParseSignature("data:image/jpeg;base64," + png)
	require.NoError(t, err)
	assert.Equal(t, "PNG", sig.ImageType, "type follows the bytes, not the label")

	sig, err = ParseSignature(png)
	require.NoError(t, err)
	assert.Equal(t, "PNG", sig.ImageType)

	_, err = ParseSignature("data:image/gif;base64," + png)
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}

func TestParseSignatureRejectsNonImage(t *testing.T) {
	_, err := ParseSignature("data:image/png;base64,aGVsbG8gd29ybGQ=")
	assert.ErrorIs(t, err, ErrInvalidDataURL)

	_, err = ParseSignature(base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")))
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}
