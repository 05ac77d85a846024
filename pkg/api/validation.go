package api

import "strings"

// ValidateAddEntry checks that both identifying fields are present and that
// no string in the request carries a NUL character. It returns an *APIError
// describing the first failure, or nil.
func ValidateAddEntry(req *AddEntryRequest) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request body is required")
	}
	if req.Service == "" {
		return newMissingFieldError(FieldService)
	}
	if req.EntryID == "" {
		return newMissingFieldError(FieldEntryID)
	}
	if hasNUL(req.Service) {
		return newInvalidValueError(FieldService)
	}
	if hasNUL(req.EntryID) {
		return newInvalidValueError(FieldEntryID)
	}
	for k, v := range req.Attributes {
		if hasNUL(k) || containsNUL(v) {
			return newInvalidValueError(k)
		}
	}
	return nil
}

// ValidateGetEntries checks that the namespace is present. An empty
// entry_ids list is valid and matches nothing.
func ValidateGetEntries(req *GetEntriesRequest) *APIError {
	if req == nil {
		return NewInvalidRequestError("", "request body is required")
	}
	if req.Service == "" {
		return newMissingFieldError(FieldService)
	}
	if hasNUL(req.Service) {
		return newInvalidValueError(FieldService)
	}
	for _, id := range req.EntryIDs {
		if hasNUL(id) {
			return newInvalidValueError(FieldEntryIDs)
		}
	}
	return nil
}

func hasNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// containsNUL walks a decoded attribute value.
func containsNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return hasNUL(t)
	case map[string]any:
		for k, val := range t {
			if hasNUL(k) || containsNUL(val) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if containsNUL(val) {
				return true
			}
		}
	case []string:
		for _, val := range t {
			if hasNUL(val) {
				return true
			}
		}
	}
	return false
}
