package models

// KeywordMetric carries provider metrics for one keyword. Nil fields mean
// the provider had no data; Opportunity is nil whenever it cannot be
// normalized.
type KeywordMetric struct {
	Keyword     string   `json:"keyword"`
	Volume      *int64   `json:"volume"`
	Competition *float64 `json:"competition"`
	CPC         *float64 `json:"cpc"`
	Opportunity *float64 `json:"opportunity"`
}
