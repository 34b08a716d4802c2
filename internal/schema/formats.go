// Package schema defines custom JSON Schema formats for combat payloads.
package schema

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

var entityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// eventIDFormatChecker implements gojsonschema.FormatChecker for event_id.
type eventIDFormatChecker struct{}

// IsFormat validates that the input is a valid UUID.
func (c eventIDFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		_, err := uuid.Parse(s)
		return err == nil
	}
	return false
}

// entityIDFormatChecker implements gojsonschema.FormatChecker for player ids.
type entityIDFormatChecker struct{}

// IsFormat accepts UUIDs and semantic ids (letters, digits, hyphens, underscores, dots).
func (c entityIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok || len(s) == 0 {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	return entityIDPattern.MatchString(s)
}

var registerOnce sync.Once

// RegisterCustomFormats registers event_id and entity_id formats. Safe to call repeatedly.
func RegisterCustomFormats() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("event_id", eventIDFormatChecker{})
		gojsonschema.FormatCheckers.Add("entity_id", entityIDFormatChecker{})
	})
}
