package prd

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Status is the lifecycle label of a stored document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusModified  Status = "modified"
	StatusFinalized Status = "finalized"
	StatusVersion   Status = "version"
)

// ParseStatus validates a status label. Empty input is an error.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusModified, StatusFinalized, StatusVersion:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Version is a document version number. Whole numbers count in-place
// updates; tenths count saved version copies. It encodes as a JSON number
// with at most one decimal and decodes from a number or a numeric string.
type Version float64

// NextMinor returns v + 0.1 rounded to one decimal.
func (v Version) NextMinor() Version {
	return Version(round1(float64(v) + 0.1))
}

// NextMajor returns v + 1.
func (v Version) NextMajor() Version {
	return Version(round1(float64(v) + 1))
}

// String formats v with a single decimal, e.g. "1.0", "1.1".
func (v Version) String() string {
	return strconv.FormatFloat(round1(float64(v)), 'f', 1, 64)
}

func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(round1(float64(v)), 'f', -1, 64)), nil
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Version(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("version must be a number: %s", data)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("version must be a number: %q", s)
	}
	*v = Version(n)
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// VersionEntry records one saved version on a lineage root.
type VersionEntry struct {
	ID        string    `json:"id"`
	Version   Version   `json:"version"`
	Note      string    `json:"versionNote"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoredDocument is a persisted document with its bookkeeping. Content
// holds the document JSON as saved or edited by the user.
type StoredDocument struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Content         json.RawMessage `json:"content"`
	Status          Status          `json:"status"`
	Version         Version         `json:"version"`
	OriginalContent json.RawMessage `json:"originalContent,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Tags            []string        `json:"tags"`
	ParentID        string          `json:"parentId,omitempty"`
	VersionNote     string          `json:"versionNote,omitempty"`
	Versions        []VersionEntry  `json:"versions,omitempty"`
}

// LatestVersion returns the highest version among the document itself
// and its recorded version entries.
func (d *StoredDocument) LatestVersion() Version {
	latest := d.Version
	for _, e := range d.Versions {
		if e.Version > latest {
			latest = e.Version
		}
	}
	return latest
}
