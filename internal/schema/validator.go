// Package schema validates scholarship feed payloads before they are wired
// into the ingestion source list.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scholarship_feed.schema.json
var feedSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// FeedReport summarizes a validated feed.
type FeedReport struct {
	Records         int
	MissingDeadline int
	MissingAmount   int
}

// ValidateFeed checks a feed payload against the feed schema. The schema is
// deliberately permissive: records only have to be objects with a non-empty
// title. Missing deadlines and amounts pass validation but are counted, since
// they cost fallback admission during ingestion.
func ValidateFeed(payload []byte) (*FeedReport, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode feed JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	report := &FeedReport{}
	for _, record := range feedRecords(value) {
		report.Records++
		if isBlankField(record["deadline"]) {
			report.MissingDeadline++
		}
		if isBlankField(record["amount"]) {
			report.MissingAmount++
		}
	}
	return report, nil
}

func feedRecords(value any) []map[string]any {
	list, ok := value.([]any)
	if !ok {
		obj, isObj := value.(map[string]any)
		if !isObj {
			return nil
		}
		for _, key := range []string{"scholarships", "data", "items", "results"} {
			if wrapped, isList := obj[key].([]any); isList {
				list = wrapped
				break
			}
		}
	}

	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if record, isMap := item.(map[string]any); isMap {
			out = append(out, record)
		}
	}
	return out
}

func isBlankField(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("scholarship_feed.schema.json", strings.NewReader(feedSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("scholarship_feed.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("feed contains trailing content")
	}

	return value, nil
}
