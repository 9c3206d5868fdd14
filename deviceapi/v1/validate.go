package v1

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// recordID extracts the "id" of a raw record for error reporting, even when
// the rest of the record does not decode.
func recordID(raw json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(probe.ID, &s); err == nil {
		return s
	}
	return string(probe.ID)
}

// decodeRecord unmarshals and validates one record of kind into dst.
func decodeRecord(kind string, raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return &MalformedError{Kind: kind, ID: recordID(raw), Err: fmt.Errorf("decode: %w", err)}
	}
	if err := validate.Struct(dst); err != nil {
		return &MalformedError{Kind: kind, ID: recordID(raw), Err: err}
	}
	return nil
}
