package dto

// ReplaceGuidesRequest swaps a tour's guide assignments.
type ReplaceGuidesRequest struct {
	Guides []string `json:"guides"`
}
