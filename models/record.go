// Package models defines data structures shared by the collector and scorer.
package models

import (
	"encoding/hex"
	"time"
)

// Record is one catalogued item on a profile listing.
// A Rating of 0 means the item carries no rating.
type Record struct {
	Title  string  `csv:"Title" json:"title"`
	Rating float64 `csv:"Rating" json:"rating"`
}

// Rated reports whether the record carries a real rating.
func (r Record) Rated() bool {
	return r.Rating != 0
}

// Catalogue is the ordered collection of one user's records.
type Catalogue []Record

// Fingerprint identifies the content of one page batch.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// StopReason explains why a collection run ended.
type StopReason string

const (
	StopEmpty      StopReason = "empty"
	StopDuplicate  StopReason = "duplicate"
	StopFetchError StopReason = "fetch_error"
	StopSafetyCap  StopReason = "safety_cap"
	StopCanceled   StopReason = "canceled"
	StopSinkError  StopReason = "sink_error"
)

// CollectResult holds the outcome of one collection run.
type CollectResult struct {
	Catalogue Catalogue
	StartTime time.Time
	EndTime   time.Time
	Pages     int
	Fetches   int
	Retries   int
	Stop      StopReason
	LastError error
}

// Complete reports whether the run ended on a proven end of data.
func (r *CollectResult) Complete() bool {
	return r.Stop == StopEmpty || r.Stop == StopDuplicate
}
