package models

import "time"

// Tick is a single last-trade observation as carried on the ticks topic.
type Tick struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"` // unix seconds or milliseconds
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

// Time normalizes T, accepting both seconds and milliseconds.
func (t Tick) Time() time.Time {
	if t.T > 1e11 {
		return time.UnixMilli(t.T).UTC()
	}
	return time.Unix(t.T, 0).UTC()
}
