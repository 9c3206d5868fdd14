package common

// ErrorResponse is the body of every non-2xx admin API answer. Kind is the
// ledger error kind when the failure came from the device API.
type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
	}
}

func (r *ErrorResponse) WithKind(kind string) *ErrorResponse {
	r.Kind = kind
	return r
}
