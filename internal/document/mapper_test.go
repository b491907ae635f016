package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFromRecord_StatusNormalization(t *testing.T) {
	cases := map[string]struct {
		in   interface{}
		want Status
	}{
		"lowercase signed": {"signed", StatusSigned},
		"upper signed":     {"SIGNED", StatusSigned},
		"missing":          {nil, StatusPending},
		"draft":            {"draft", StatusPending},
		"pending":          {"pending", StatusPending},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := map[string]interface{}{"_id": "d1"}
			if tc.in != nil {
				rec["status"] = tc.in
			}
			assert.Equal(t, tc.want, FromRecord(rec, fixedNow).Status)
		})
	}
}

func TestFromRecord_IDAndTitleFallbacks(t *testing.T) {
	oid := primitive.NewObjectID()
	d := FromRecord(map[string]interface{}{"_id": oid, "name": "Service agreement"}, fixedNow)
	assert.Equal(t, oid.Hex(), d.ID)
	assert.Equal(t, oid, d.StoreKey)
	assert.Equal(t, "Service agreement", d.Title)

	d = FromRecord(map[string]interface{}{"id": "legacy-1", "documentTitle": "Old"}, fixedNow)
	assert.Equal(t, "legacy-1", d.ID)
	assert.Equal(t, "Old", d.Title)
	assert.Nil(t, d.StoreKey)

	d = FromRecord(map[string]interface{}{"id": 42}, fixedNow)
	assert.Equal(t, "42", d.ID)
	assert.Equal(t, "Untitled", d.Title)
}

func TestFromRecord_ExtendedJSON(t *testing.T) {
	oid := primitive.NewObjectID()
	d := FromRecord(map[string]interface{}{
		"_id":       map[string]interface{}{"$oid": oid.Hex()},
		"createdAt": map[string]interface{}{"$date": "2024-03-01T10:00:00Z"},
		"signedAt":  map[string]interface{}{"$date": float64(1709287200000)},
	}, fixedNow)
	assert.Equal(t, oid.Hex(), d.ID)
	assert.Equal(t, oid, d.StoreKey)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli(), d.CreatedAt)
	require.NotNil(t, d.SignedAt)
	assert.Equal(t, int64(1709287200000), *d.SignedAt)

	d = FromRecord(map[string]interface{}{"_id": map[string]interface{}{"$oid": "nope"}, "id": "doc-7"}, fixedNow)
	assert.Equal(t, "doc-7", d.ID)
	assert.Nil(t, d.StoreKey)
}

func TestFromRecord_CreatedAtForms(t *testing.T) {
	want := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()

	cases := map[string]map[string]interface{}{
		"number":        {"createdAt": float64(want)},
		"int64":         {"createdAt": want},
		"bson date":     {"createdAt": primitive.NewDateTimeFromTime(time.UnixMilli(want))},
		"time":          {"createdAt": time.UnixMilli(want)},
		"iso string":    {"createdAt": "2023-01-02T03:04:05Z"},
		"snake case":    {"created_at": "2023-01-02T03:04:05.000Z"},
		"numeric text":  {"createdAt": "1672628645000"},
		"camel wins":    {"createdAt": want, "created_at": "1999-01-01"},
		"bad then snake": {"createdAt": "not a date", "created_at": want},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, FromRecord(rec, fixedNow).CreatedAt)
		})
	}

	assert.Equal(t, fixedNow.UnixMilli(), FromRecord(map[string]interface{}{"createdAt": "garbage"}, fixedNow).CreatedAt)
}

func TestFromRecord_AgentAndFileFallbacks(t *testing.T) {
	d := FromRecord(map[string]interface{}{
		"metadata": bson.M{"agentId": "u-7", "clientEmail": "c@example.com"},
		"pdfUrl":   "data:application/pdf;base64,AAAA",
	}, fixedNow)
	assert.Equal(t, "u-7", d.AgentID)
	assert.Equal(t, "data:application/pdf;base64,AAAA", d.FileURL)
	assert.Equal(t, "c@example.com", d.Meta("clientEmail"))

	d = FromRecord(map[string]interface{}{"agentId": "u-1", "metadata": bson.M{"agentId": "u-2"}}, fixedNow)
	assert.Equal(t, "u-1", d.AgentID)

	d = FromRecord(map[string]interface{}{}, fixedNow)
	assert.Equal(t, "", d.AgentID)
	assert.NotNil(t, d.Metadata)
}

func TestFromRecord_SynthesizesMetadata(t *testing.T) {
	d := FromRecord(map[string]interface{}{
		"clientName":  "Jane",
		"clientEmail": "jane@example.com",
		"projectName": "Rebrand",
		"agencyName":  "Acme",
		"unrelated":   "x",
	}, fixedNow)
	require.Len(t, d.Metadata, 4)
	assert.Equal(t, "Jane", d.Metadata["clientName"])
	assert.Equal(t, "Rebrand", d.Metadata["projectName"])
	_, has := d.Metadata["agencyEmail"]
	assert.False(t, has)
}

func TestFromRecord_NormalizesNestedBSON(t *testing.T) {
	d := FromRecord(map[string]interface{}{
		"metadata": primitive.M{
			"services": primitive.A{primitive.D{{Key: "name", Value: "SEO"}}},
		},
	}, fixedNow)
	services, ok := d.Metadata["services"].([]interface{})
	require.True(t, ok)
	first, ok := services[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "SEO", first["name"])
}

func TestToRecord_RoundTripsThroughMapper(t *testing.T) {
	signedAt := fixedNow.UnixMilli()
	in := &Document{
		ID:           "doc-1",
		Title:        "NDA",
		Status:       StatusSigned,
		CreatedAt:    fixedNow.Add(-time.Hour).UnixMilli(),
		SignedAt:     &signedAt,
		SignerGmail:  "s@gmail.com",
		SignedPdfURL: "data:application/pdf;base64,QQ==",
		AgentID:      "u-1",
		Metadata:     map[string]interface{}{"clientEmail": "s@gmail.com"},
		SignToken:    "sign-x",
		Version:      3,
	}
	out := FromRecord(ToRecord(in), fixedNow)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in.CreatedAt, out.CreatedAt)
	require.NotNil(t, out.SignedAt)
	assert.Equal(t, signedAt, *out.SignedAt)
	assert.Equal(t, in.SignedPdfURL, out.SignedPdfURL)
	assert.Equal(t, int64(3), out.Version)
}

func TestSignerInfoFor(t *testing.T) {
	d := &Document{Metadata: map[string]interface{}{
		"clientEmail":   "client@example.com",
		"clientCompany": "Acme LLC",
		"clientName":    "Jane",
	}}
	info := SignerInfoFor(d, "", fixedNow)
	assert.Equal(t, "client@example.com", info.Email)
	assert.Equal(t, "Acme LLC", info.Company)
	assert.Equal(t, "Jane", info.OwnerName)

	d.Metadata["clientCompanyName"] = "Acme Holdings"
	d.Metadata["businessOwnerName"] = "J. Doe"
	info = SignerInfoFor(d, " signer@gmail.com ", fixedNow)
	assert.Equal(t, "signer@gmail.com", info.Email)
	assert.Equal(t, "Acme Holdings", info.Company)
	assert.Equal(t, "J. Doe", info.OwnerName)
}

func TestOwnedBy(t *testing.T) {
	d := &Document{AgentID: "u-1", Metadata: map[string]interface{}{"agentId": "u-2"}}
	assert.True(t, d.OwnedBy("u-1"))
	assert.True(t, d.OwnedBy("u-2"))
	assert.False(t, d.OwnedBy("u-3"))
	assert.False(t, (&Document{}).OwnedBy(""))
}

func TestNewIdentifiers(t *testing.T) {
	assert.Regexp(t, `^doc-[0-9a-f-]{36}$`, NewID())
	a, b := NewSignToken(), NewSignToken()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^sign-[0-9A-Za-z]{27}$`, a)
}
