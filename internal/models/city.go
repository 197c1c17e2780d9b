package models

// City is a directory location page discovered for a domain.
type City struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	BusinessCount int    `json:"business_count,omitempty"`
	Domain        string `json:"domain,omitempty"`
}
