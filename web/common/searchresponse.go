package common

// Pagination describes a bounded list. Limit is the page cap the caller asked
// for, so Total == Limit hints that more rows exist.
type Pagination struct {
	Total int64 `json:"total"`
	Limit int   `json:"limit,omitempty"`
}

type SearchResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func NewSearchResponse(data any, total int64, limit int) *SearchResponse {
	return &SearchResponse{
		Data: data,
		Pagination: Pagination{
			Total: total,
			Limit: limit,
		},
	}
}
