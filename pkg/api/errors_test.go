package api

import (
	"encoding/json"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			&APIError{Type: ErrorTypeInvalidRequest, Param: "service", Message: "is required"},
			"invalid_request: is required (param: service)",
		},
		{
			"without param",
			&APIError{Type: ErrorTypeServerError, Message: "internal failure"},
			"server_error: internal failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantType  ErrorType
		wantParam string
	}{
		{"invalid request", NewInvalidRequestError("entry_id", "is required"), ErrorTypeInvalidRequest, "entry_id"},
		{"missing field", newMissingFieldError(FieldService), ErrorTypeInvalidRequest, "service"},
		{"invalid type", newInvalidTypeError(FieldEntryIDs, "bad"), ErrorTypeInvalidRequest, "entry_ids"},
		{"server error", NewServerError("internal failure"), ErrorTypeServerError, ""},
		{"unavailable", NewUnavailableError("store unreachable"), ErrorTypeServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", tt.err.Param, tt.wantParam)
			}
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := ErrorResponse{Error: NewInvalidRequestError("service", "is required")}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got ErrorResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Error.Type != ErrorTypeInvalidRequest {
		t.Errorf("Error.Type = %q, want %q", got.Error.Type, ErrorTypeInvalidRequest)
	}
	if got.Error.Param != "service" {
		t.Errorf("Error.Param = %q, want %q", got.Error.Param, "service")
	}
}

func TestAPIErrorOmitEmpty(t *testing.T) {
	err := &APIError{Type: ErrorTypeServerError, Message: "fail"}
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal: %v", marshalErr)
	}

	var m map[string]interface{}
	if unmarshalErr := json.Unmarshal(data, &m); unmarshalErr != nil {
		t.Fatalf("Unmarshal: %v", unmarshalErr)
	}

	if _, ok := m["code"]; ok {
		t.Error("empty code should be omitted from JSON")
	}
	if _, ok := m["param"]; ok {
		t.Error("empty param should be omitted from JSON")
	}
}

func TestValidationErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		wantCode string
		wantMsg  string
	}{
		{"missing service", ValidateAddEntry(&AddEntryRequest{EntryID: "ep1"}), CodeMissingField, "service is required"},
		{"missing entry_id", ValidateAddEntry(&AddEntryRequest{Service: "tv"}), CodeMissingField, "entry_id is required"},
		{"empty service", ValidateGetEntries(&GetEntriesRequest{Service: ""}), CodeMissingField, "service is required"},
		{"NUL in entry_id", ValidateAddEntry(&AddEntryRequest{Service: "tv", EntryID: "ep\x001"}), CodeInvalidValue, "entry_id must not contain NUL characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("expected an error, got nil")
			}
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}

	_, err := EntryFromFields(map[string]any{"service": 7, "entry_id": "x"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("EntryFromFields error = %T, want *APIError", err)
	}
	if apiErr.Code != CodeInvalidType || apiErr.Param != FieldService {
		t.Errorf("EntryFromFields error = %+v, want invalid_type on service", apiErr)
	}
}
