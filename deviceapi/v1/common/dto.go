package common

import "encoding/json"

// ListResponse is the paginated envelope of every device API list endpoint.
type ListResponse struct {
	Count    *int              `json:"count" validate:"required,gte=0"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Data     []json.RawMessage `json:"data"`
}

func (r *ListResponse) HasNext() bool {
	return r.Next != nil && *r.Next != ""
}

// StatusResponse is returned by write endpoints; Code 0 means success.
type StatusResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}
