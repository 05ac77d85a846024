package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// DecodeObject decodes a JSON object into a field map. Numbers are kept
// as json.Number so integers wider than 53 bits survive unchanged. A JSON
// null yields a nil map.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return fields, nil
}
