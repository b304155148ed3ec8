package api

import (
	"github.com/starford/calendle/internal/document"
	"github.com/starford/calendle/internal/index"
)

// LoadRequest is the body of POST /load-data.
type LoadRequest struct {
	Date string `json:"date" example:"2024-08-12"`
	List string `json:"list" example:"someday"`
}

// DataResponse carries a merged payload and the list it was built with. It
// is also the data of every on-send-data event.
type DataResponse struct {
	Data document.Merged `json:"data"`
	List string          `json:"list" example:"someday"`
}

// ListsResponse is the response of GET /lists.
type ListsResponse struct {
	Lists []string `json:"lists"`
}

// SearchResponse is the response of GET /search.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

type statusResponse struct {
	Status string `json:"status" example:"accepted"`
}
