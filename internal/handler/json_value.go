package handler

import "encoding/json"

// jsonValue captures any JSON value, including false and 0, while still
// letting binding:"required" reject a missing or null field.
type jsonValue []byte

func (v *jsonValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = nil
		return nil
	}
	*v = append((*v)[:0], data...)
	return nil
}

// Raw returns the captured value.
func (v jsonValue) Raw() json.RawMessage { return json.RawMessage(v) }
