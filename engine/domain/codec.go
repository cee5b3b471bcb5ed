package domain

import (
	pb "github.com/qdrant/go-client/qdrant"
)

// Payload is the store's untyped key/value representation of a record.
type Payload map[string]*pb.Value

// The codec below is a closed, explicit mapping per variant. Decoding walks
// the variant's declared keys only: unknown keys are tolerated, a missing
// required key is a SchemaError, and a known key holding a non-string kind
// is a SchemaError rather than a coerced default.

// EncodeDocument serializes a document payload into wire form. Empty
// optional fields are omitted.
func EncodeDocument(p DocumentPayload) Payload {
	out := Payload{KeyDocument: strValue(p.Document)}
	putOptional(out, KeyTags, p.Tags)
	putOptional(out, KeyFileName, p.FileName)
	putOptional(out, KeyPage, p.Page)
	return out
}

// DecodeDocument maps wire form back into a document payload.
func DecodeDocument(raw Payload) (DocumentPayload, error) {
	var p DocumentPayload
	doc, err := requireString(raw, KeyDocument)
	if err != nil {
		return DocumentPayload{}, err
	}
	p.Document = doc
	if p.Tags, err = optionalString(raw, KeyTags); err != nil {
		return DocumentPayload{}, err
	}
	if p.FileName, err = optionalString(raw, KeyFileName); err != nil {
		return DocumentPayload{}, err
	}
	if p.Page, err = optionalString(raw, KeyPage); err != nil {
		return DocumentPayload{}, err
	}
	return p, nil
}

// EncodeDataQuery serializes a data-query payload into wire form.
func EncodeDataQuery(p DataQueryPayload) Payload {
	out := Payload{
		KeyDocument: strValue(p.Document),
		KeyQuery:    strValue(p.Query),
	}
	putOptional(out, KeyTags, p.Tags)
	return out
}

// DecodeDataQuery maps wire form back into a data-query payload. The query
// key is required: a stored record without it cannot be resolved.
func DecodeDataQuery(raw Payload) (DataQueryPayload, error) {
	var p DataQueryPayload
	doc, err := requireString(raw, KeyDocument)
	if err != nil {
		return DataQueryPayload{}, err
	}
	p.Document = doc
	if p.Query, err = requireString(raw, KeyQuery); err != nil {
		return DataQueryPayload{}, err
	}
	if p.Tags, err = optionalString(raw, KeyTags); err != nil {
		return DataQueryPayload{}, err
	}
	return p, nil
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func putOptional(p Payload, key, val string) {
	if val != "" {
		p[key] = strValue(val)
	}
}

func requireString(raw Payload, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", &SchemaError{Key: key, Reason: "required key missing"}
	}
	s, ok := v.GetKind().(*pb.Value_StringValue)
	if !ok {
		return "", &SchemaError{Key: key, Reason: "expected string value"}
	}
	return s.StringValue, nil
}

func optionalString(raw Payload, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.GetKind().(*pb.Value_StringValue)
	if !ok {
		return "", &SchemaError{Key: key, Reason: "expected string value"}
	}
	return s.StringValue, nil
}
