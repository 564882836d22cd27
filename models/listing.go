package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scalar is a descriptor value that may arrive as a JSON string or number.
// It keeps the textual form; an empty Scalar means the field was absent.
type Scalar string

// UnmarshalJSON accepts strings, numbers and null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("scalar: expected string or number, got %s", data)
		}
		*s = Scalar(num.String())
	}
	return nil
}

// IsSet reports whether the field carried a non-blank value.
func (s Scalar) IsSet() bool {
	return strings.TrimSpace(string(s)) != ""
}

// PropertyListing is the raw record decoded from one folder's descriptor file.
type PropertyListing struct {
	ProductID      Scalar `json:"productId"`
	RealEstateType Scalar `json:"realEstateType"`
	PropertyType   Scalar `json:"propertyType"`
	AgreementType  Scalar `json:"agreementType"`
	Address        string `json:"address"`
	Rooms          Scalar `json:"rooms"`
	Bedrooms       Scalar `json:"bedrooms"`
	Floor          Scalar `json:"floor"`
	TotalFloors    Scalar `json:"totalFloors"`
	Area           Scalar `json:"area"`
	PriceUSD       Scalar `json:"priceUSD"`
	Price          Scalar `json:"price"`
	Description    string `json:"description"`
	VIPStatus      Scalar `json:"vipStatus"`
}

// Listing is the normalized record handed to the form driver. Every field
// already has its default applied.
type Listing struct {
	Folder         string
	ProductID      string
	RealEstateType int
	AgreementType  int
	Address        string
	Rooms          int
	Bedrooms       int
	Floor          string
	TotalFloors    string
	Area           string
	PriceUSD       string
	Description    string
	VIPStatus      *int
}

// Status is the outcome of one listing folder.
type Status string

const (
	StatusPublished Status = "published"
	StatusAbandoned Status = "abandoned" // timeouts exhausted the retry budget
	StatusFailed    Status = "failed"    // non-recoverable, aborted the batch
	StatusSkipped   Status = "skipped"   // descriptor rejected under the skip policy
)

// SubmissionResult records what happened to one listing folder.
type SubmissionResult struct {
	RunID      string
	Folder     string
	ProductID  string
	Address    string
	Status     Status
	Attempts   int
	Photos     int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time spent on the listing.
func (r *SubmissionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunSummary aggregates one batch run.
type RunSummary struct {
	RunID      string
	Root       string
	Results    []*SubmissionResult
	Aborted    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns the number of results with the given status.
func (s *RunSummary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}
