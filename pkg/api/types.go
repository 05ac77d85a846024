package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Wire names of the identifying fields.
const (
	FieldService  = "service"
	FieldEntryID  = "entry_id"
	FieldEntryIDs = "entry_ids"
)

// Attributes holds the caller-supplied extra fields of an entry. Values are
// whatever the JSON decoder (or the store driver) produced for them.
type Attributes map[string]any

// Entry is one (service, entry_id) record plus arbitrary attributes.
// The pair (Service, EntryID) is unique across the ledger.
type Entry struct {
	Service    string
	EntryID    string
	Attributes Attributes
}

// NewEntry creates an entry, copying attrs without reserved keys.
func NewEntry(service, entryID string, attrs map[string]any) *Entry {
	return &Entry{
		Service:    service,
		EntryID:    entryID,
		Attributes: CleanAttributes(attrs),
	}
}

// CleanAttributes returns a copy of attrs with the identifying fields and
// underscore-prefixed keys removed. The result is never nil.
func CleanAttributes(attrs map[string]any) Attributes {
	out := make(Attributes, len(attrs))
	for k, v := range attrs {
		if IsReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// IsReservedKey reports whether k cannot be used as an attribute name.
// Keys starting with "_" belong to the storage backends (e.g. Mongo's _id).
func IsReservedKey(k string) bool {
	return k == FieldService || k == FieldEntryID || strings.HasPrefix(k, "_")
}

// MarshalJSON writes the entry as a flat object. The identifying fields come
// first, followed by attributes in key order.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, FieldService, e.Service); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, FieldEntryID, e.EntryID); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		if IsReservedKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeMember(&buf, k, e.Attributes[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat entry object.
func (e *Entry) UnmarshalJSON(data []byte) error {
	fields, err := DecodeObject(data)
	if err != nil {
		return err
	}
	entry, err := EntryFromFields(fields)
	if err != nil {
		return err
	}
	*e = *entry
	return nil
}

// EntryFromFields builds an entry from its flat representation. The
// identifying fields must be strings when present.
func EntryFromFields(fields map[string]any) (*Entry, error) {
	service, err := stringField(fields, FieldService)
	if err != nil {
		return nil, err
	}
	entryID, err := stringField(fields, FieldEntryID)
	if err != nil {
		return nil, err
	}
	return NewEntry(service, entryID, fields), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling attribute %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// stringField returns fields[name] as a string. A missing or null field
// yields the empty string.
func stringField(fields map[string]any, name string) (string, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", newInvalidTypeError(name, name+" must be a string")
	}
	return s, nil
}

// AddEntryRequest is the input of the find-or-create operation. On the
// wire it is a flat object: every member other than service and entry_id
// becomes an attribute.
type AddEntryRequest struct {
	Service    string
	EntryID    string
	Attributes Attributes
}

// AddEntryRequestFromFields builds a request from decoded fields (a JSON
// object body, or form/query values).
func AddEntryRequestFromFields(fields map[string]any) (*AddEntryRequest, *APIError) {
	entry, err := EntryFromFields(fields)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			return nil, apiErr
		}
		return nil, NewInvalidRequestError("", err.Error())
	}
	return &AddEntryRequest{
		Service:    entry.Service,
		EntryID:    entry.EntryID,
		Attributes: entry.Attributes,
	}, nil
}

// UnmarshalJSON reads a flat add_entry object.
func (r *AddEntryRequest) UnmarshalJSON(data []byte) error {
	fields, err := DecodeObject(data)
	if err != nil {
		return err
	}
	req, apiErr := AddEntryRequestFromFields(fields)
	if apiErr != nil {
		return apiErr
	}
	*r = *req
	return nil
}

// AddEntryResult reports whether the entry was created by this call and
// carries the stored record either way.
type AddEntryResult struct {
	Added bool   `json:"added"`
	Entry *Entry `json:"entry"`
}

// GetEntriesRequest is the input of the batch lookup. EntryIDs is a
// membership filter; duplicates are allowed.
type GetEntriesRequest struct {
	Service  string   `json:"service"`
	EntryIDs []string `json:"entry_ids"`
}

// UnmarshalJSON accepts entry_ids either as a list of strings or as a
// single string.
func (r *GetEntriesRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Service  json.RawMessage `json:"service"`
		EntryIDs json.RawMessage `json:"entry_ids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var req GetEntriesRequest
	if len(raw.Service) > 0 {
		if err := json.Unmarshal(raw.Service, &req.Service); err != nil {
			return newInvalidTypeError(FieldService, "service must be a string")
		}
	}
	if len(raw.EntryIDs) > 0 {
		if err := json.Unmarshal(raw.EntryIDs, &req.EntryIDs); err != nil {
			var single string
			if err := json.Unmarshal(raw.EntryIDs, &single); err != nil {
				return newInvalidTypeError(FieldEntryIDs, "entry_ids must be a string or a list of strings")
			}
			req.EntryIDs = []string{single}
		}
	}
	*r = req
	return nil
}

// ServiceList is the result of listing namespaces.
type ServiceList struct {
	Items []string `json:"items"`
}
