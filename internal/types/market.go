package types

import "time"

// Bar represents one OHLCV aggregate over a fixed time bucket.
// The JSON field names match the CSV header so both output formats
// carry identical column names.
type Bar struct {
	Ticker string    `json:"ticker" csv:"ticker"`
	Time   time.Time `json:"timestamp" csv:"timestamp"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`
}

// Day returns the UTC calendar day containing the bar's timestamp.
func (b Bar) Day() time.Time {
	t := b.Time.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
