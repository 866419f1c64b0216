package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonb column helpers. GORM's postgres driver hands jsonb back as []byte (or
// string depending on the wire mode), so every document-valued field shares
// these two functions through its Valuer/Scanner methods.

func jsonbValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonbScan(dst any, src any) error {
	if src == nil {
		return nil
	}
	switch raw := src.(type) {
	case []byte:
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, dst)
	case string:
		if raw == "" {
			return nil
		}
		return json.Unmarshal([]byte(raw), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// StringList persists a []string as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonbValue([]string(l))
}

func (l *StringList) Scan(src any) error { return jsonbScan(l, src) }

// Provider describes who offers a scholarship.
type Provider struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Website string `json:"website,omitempty"`
}

func (p Provider) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *Provider) Scan(src any) error          { return jsonbScan(p, src) }

// Eligibility captures the who-can-apply constraints of a scholarship.
type Eligibility struct {
	Summary        string   `json:"summary,omitempty"`
	MinMarks       *float64 `json:"minMarks,omitempty"`
	MaxIncome      *int64   `json:"maxIncome,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	StatesAllowed  []string `json:"statesAllowed,omitempty"`
	EducationLevel string   `json:"educationLevel,omitempty"`
}

func (e Eligibility) Value() (driver.Value, error) { return jsonbValue(e) }
func (e *Eligibility) Scan(src any) error          { return jsonbScan(e, src) }

// ApplicationProcess describes how to apply.
type ApplicationProcess struct {
	Mode      string   `json:"mode,omitempty"`
	ApplyLink string   `json:"applyLink,omitempty"`
	Steps     []string `json:"steps,omitempty"`
}

func (a ApplicationProcess) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *ApplicationProcess) Scan(src any) error          { return jsonbScan(a, src) }

// SourceMeta records where a catalog entry was ingested from. DedupeKey is the
// content hash that collapses re-scrapes of the same listing; ExternalID is
// the source's own identifier when it exposes one.
type SourceMeta struct {
	Provider   string `json:"provider,omitempty"`
	Adapter    string `json:"adapter,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	DedupeKey  string `json:"dedupeKey,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

func (s SourceMeta) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *SourceMeta) Scan(src any) error          { return jsonbScan(s, src) }

// RunTotals aggregates counters across all sources of one ingestion run.
type RunTotals struct {
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
}

func (t RunTotals) Value() (driver.Value, error) { return jsonbValue(t) }
func (t *RunTotals) Scan(src any) error          { return jsonbScan(t, src) }

// SourceSummary is the per-source slice of an ingestion run record.
type SourceSummary struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Adapter    string   `json:"adapter"`
	Fetched    int      `json:"fetched"`
	Normalized int      `json:"normalized"`
	Inserted   int      `json:"inserted"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
}

// SourceSummaryList persists []SourceSummary as a jsonb array.
type SourceSummaryList []SourceSummary

func (l SourceSummaryList) Value() (driver.Value, error) {
	if l == nil {
		l = SourceSummaryList{}
	}
	return jsonbValue([]SourceSummary(l))
}

func (l *SourceSummaryList) Scan(src any) error { return jsonbScan(l, src) }
