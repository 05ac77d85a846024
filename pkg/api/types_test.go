package api

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestEntryMarshalFlat(t *testing.T) {
	e := NewEntry("tv", "ep1", map[string]any{"title": "Pilot", "season": 1})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := `{"service":"tv","entry_id":"ep1","season":1,"title":"Pilot"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestEntryMarshalNoAttributes(t *testing.T) {
	e := &Entry{Service: "tv", EntryID: "ep1"}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"service":"tv","entry_id":"ep1"}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestEntryIdentifyingFieldsWin(t *testing.T) {
	e := &Entry{
		Service:    "tv",
		EntryID:    "ep1",
		Attributes: Attributes{"service": "other", "entry_id": "x", "_id": "abc"},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"service":"tv","entry_id":"ep1"}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestEntryUnmarshal(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"service":"tv","entry_id":"ep1","title":"Pilot","tags":["a","b"]}`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if e.Service != "tv" || e.EntryID != "ep1" {
		t.Errorf("key = (%q, %q), want (tv, ep1)", e.Service, e.EntryID)
	}
	want := Attributes{"title": "Pilot", "tags": []any{"a", "b"}}
	if !reflect.DeepEqual(e.Attributes, want) {
		t.Errorf("Attributes = %v, want %v", e.Attributes, want)
	}
}

func TestNewEntryCopiesAttributes(t *testing.T) {
	attrs := map[string]any{"title": "Pilot"}
	e := NewEntry("tv", "ep1", attrs)

	attrs["title"] = "changed"
	if e.Attributes["title"] != "Pilot" {
		t.Errorf("entry attributes alias the caller's map")
	}
}

func TestAddEntryRequestUnmarshal(t *testing.T) {
	var req AddEntryRequest
	err := json.Unmarshal([]byte(`{"service":"tv","entry_id":"ep1","title":"Pilot","rating":4.5,"tweet_id":1234567890123456789}`), &req)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if req.Service != "tv" {
		t.Errorf("Service = %q, want tv", req.Service)
	}
	if req.EntryID != "ep1" {
		t.Errorf("EntryID = %q, want ep1", req.EntryID)
	}
	want := Attributes{
		"title":    "Pilot",
		"rating":   json.Number("4.5"),
		"tweet_id": json.Number("1234567890123456789"),
	}
	if !reflect.DeepEqual(req.Attributes, want) {
		t.Errorf("Attributes = %v, want %v", req.Attributes, want)
	}
}

func TestEntryRoundTripKeepsLargeIntegers(t *testing.T) {
	in := `{"service":"social","entry_id":"t1","nested":{"big":9007199254740993},"tweet_id":1234567890123456789}`

	var e Entry
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestDecodeObjectTrailingData(t *testing.T) {
	if _, err := DecodeObject([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestAddEntryRequestNonStringKey(t *testing.T) {
	var req AddEntryRequest
	err := json.Unmarshal([]byte(`{"service":"tv","entry_id":42}`), &req)
	if err == nil {
		t.Fatal("expected error for numeric entry_id")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Param != FieldEntryID {
		t.Errorf("Param = %q, want %q", apiErr.Param, FieldEntryID)
	}
}

func TestAddEntryRequestFromFieldsMissingKeys(t *testing.T) {
	req, apiErr := AddEntryRequestFromFields(map[string]any{"title": "Pilot"})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if req.Service != "" || req.EntryID != "" {
		t.Errorf("missing keys should decode as empty, got (%q, %q)", req.Service, req.EntryID)
	}
}

func TestGetEntriesRequestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    GetEntriesRequest
		wantErr bool
	}{
		{
			name: "list",
			body: `{"service":"tv","entry_ids":["ep1","ep2"]}`,
			want: GetEntriesRequest{Service: "tv", EntryIDs: []string{"ep1", "ep2"}},
		},
		{
			name: "single string",
			body: `{"service":"tv","entry_ids":"ep1"}`,
			want: GetEntriesRequest{Service: "tv", EntryIDs: []string{"ep1"}},
		},
		{
			name: "missing ids",
			body: `{"service":"tv"}`,
			want: GetEntriesRequest{Service: "tv"},
		},
		{
			name:    "numeric ids",
			body:    `{"service":"tv","entry_ids":[1,2]}`,
			wantErr: true,
		},
		{
			name:    "numeric service",
			body:    `{"service":7,"entry_ids":["ep1"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got GetEntriesRequest
			err := json.Unmarshal([]byte(tt.body), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAddEntryResultJSON(t *testing.T) {
	res := AddEntryResult{Added: true, Entry: NewEntry("tv", "ep1", map[string]any{"title": "Pilot"})}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"added":true,"entry":{"service":"tv","entry_id":"ep1","title":"Pilot"}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}
