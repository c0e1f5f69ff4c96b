package models

import "time"

// Quality grades a single reading.
type Quality string

const (
	QualityGood      Quality = "good"
	QualityBad       Quality = "bad"
	QualityUncertain Quality = "uncertain"
)

// Reading is one sample of one register. Readings are append-only and
// written exclusively by pollers.
type Reading struct {
	ID          int64     `json:"id"`
	RegisterID  int64     `json:"register_id"`
	Timestamp   time.Time `json:"timestamp"`
	RawValue    float64   `json:"raw_value"`
	ScaledValue float64   `json:"scaled_value"`
	Quality     Quality   `json:"quality" example:"good"`
}
