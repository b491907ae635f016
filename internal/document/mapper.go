package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fields that can be lifted into metadata when a record has none.
var legacyMetadataKeys = []string{"clientName", "clientEmail", "projectName", "agencyName", "agencyEmail"}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

// FromRecord normalizes a stored record of any vintage into a Document.
// It never fails; missing or malformed fields get defaults.
func FromRecord(rec map[string]interface{}, now time.Time) *Document {
	rec = normalizeMap(rec)
	d := &Document{}

	if raw := storeKey(rec["_id"]); raw != nil {
		d.StoreKey = raw
		d.ID = stringify(raw)
	}
	if d.ID == "" {
		d.ID = stringify(rec["id"])
	}

	if strings.EqualFold(strings.TrimSpace(stringify(rec["status"])), string(StatusSigned)) {
		d.Status = StatusSigned
	} else {
		d.Status = StatusPending
	}

	d.Title = firstString(rec, "title", "name", "documentTitle")
	if d.Title == "" {
		d.Title = "Untitled"
	}

	if ms, ok := asMillis(rec["createdAt"]); ok {
		d.CreatedAt = ms
	} else if ms, ok := asMillis(rec["created_at"]); ok {
		d.CreatedAt = ms
	} else {
		d.CreatedAt = now.UnixMilli()
	}
	if ms, ok := asMillis(rec["signedAt"]); ok {
		d.SignedAt = &ms
	}

	d.FileURL = firstString(rec, "fileUrl", "pdfUrl", "base64", "file")
	d.SignedPdfURL = firstString(rec, "signedPdfUrl")
	d.SignerIP = firstString(rec, "signerIP")
	d.SignerGmail = firstString(rec, "signerGmail")
	d.AgentName = firstString(rec, "agentName")
	d.SignToken = firstString(rec, "signToken")
	if v, ok := asInt(rec["version"]); ok {
		d.Version = v
	}

	if md, ok := rec["metadata"].(map[string]interface{}); ok {
		d.Metadata = md
	} else {
		d.Metadata = map[string]interface{}{}
		for _, k := range legacyMetadataKeys {
			if s := firstString(rec, k); s != "" {
				d.Metadata[k] = s
			}
		}
	}

	d.AgentID = firstString(rec, "agentId")
	if d.AgentID == "" {
		d.AgentID = d.Meta("agentId")
	}
	return d
}

// ToRecord renders the document in its current stored shape.
func ToRecord(d *Document) bson.M {
	key := d.StoreKey
	if key == nil {
		key = d.ID
	}
	rec := bson.M{
		"_id":       key,
		"id":        d.ID,
		"title":     d.Title,
		"status":    string(d.Status),
		"createdAt": time.UnixMilli(d.CreatedAt).UTC(),
		"agentId":   d.AgentID,
		"agentName": d.AgentName,
		"metadata":  d.Metadata,
		"signToken": d.SignToken,
		"version":   d.Version,
	}
	if d.FileURL != "" {
		rec["fileUrl"] = d.FileURL
	}
	for k, v := range signedFields(d) {
		rec[k] = v
	}
	return rec
}

// MutableFields is the $set payload for fields that change after creation.
func MutableFields(d *Document) bson.M {
	set := bson.M{
		"status":    string(d.Status),
		"signToken": d.SignToken,
		"version":   d.Version,
	}
	for k, v := range signedFields(d) {
		set[k] = v
	}
	return set
}

func signedFields(d *Document) bson.M {
	out := bson.M{}
	if d.SignedAt != nil {
		out["signedAt"] = time.UnixMilli(*d.SignedAt).UTC()
	}
	if d.SignerGmail != "" {
		out["signerGmail"] = d.SignerGmail
	}
	if d.SignerIP != "" {
		out["signerIP"] = d.SignerIP
	}
	if d.SignedPdfURL != "" {
		out["signedPdfUrl"] = d.SignedPdfURL
	}
	return out
}

// storeKey unwraps extended JSON keys ({"$oid": "..."}) found in export
// files into ObjectIDs. Other keys pass through unchanged.
func storeKey(raw interface{}) interface{} {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}
	hex, _ := m["$oid"].(string)
	if oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex)); err == nil {
		return oid
	}
	return nil
}

func firstString(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringify(rec[k])); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case float32:
		return int64(t), true
	}
	return 0, false
}

// asMillis converts numbers, dates and parseable strings into epoch millis.
func asMillis(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case primitive.DateTime:
		return int64(t), true
	case map[string]interface{}:
		// extended JSON {"$date": ...}
		if v, ok := t["$date"]; ok {
			return asMillis(v)
		}
		return 0, false
	case time.Time:
		if t.IsZero() {
			return 0, false
		}
		return t.UnixMilli(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(n), true
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli(), true
			}
		}
		return 0, false
	}
	return asInt(v)
}

// normalizeMap converts BSON container types into plain Go maps and slices
// so the result serializes cleanly as JSON.
func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		return normalizeMap(t)
	case map[string]interface{}:
		return normalizeMap(t)
	case primitive.D:
		return normalizeMap(t.Map())
	case primitive.A:
		return normalizeSlice(t)
	case []interface{}:
		return normalizeSlice(t)
	default:
		return v
	}
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = normalizeValue(v)
	}
	return out
}
