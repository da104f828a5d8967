// Package subsession implements Sub-session Spawning (§4.9): generating
// W3C-Trace-Context-flavored sub-session ids for child agent runs, and
// applying provider/model preferences (with glob pattern resolution) to a
// mount plan before a child session is activated from it.
//
// Grounded on original_source's amplifier_foundation/tracing.py
// (generate_sub_session_id) and spawn_utils.py (ProviderPreference,
// resolve_model_pattern, apply_provider_preferences,
// apply_provider_preferences_with_resolution, _find_provider_instance,
// _build_provider_lookup).
package subsession

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const spanHexLen = 16

var defaultParentSpan = strings.Repeat("0", spanHexLen)

var (
	spanPattern     = regexp.MustCompile(`^([0-9a-f]{16})-([0-9a-f]{16})_`)
	traceIDPattern  = regexp.MustCompile(`^[0-9a-f]{32}$`)
	nonAlnumRun     = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// GenerateSubSessionID produces a filesystem-safe id of the form
// "{parent-span}-{child-span}_{sanitized-name}" for a spawned child
// session. agentName, parentSessionID and parentTraceID may all be empty.
//
// The parent span is extracted from parentSessionID if it matches the same
// pattern this function produces (the parent's child span becomes this
// call's parent span); failing that, from the middle 16 hex chars of a
// valid 32-char parentTraceID; failing that, 16 zeros. The child span is
// always a fresh random value.
func GenerateSubSessionID(agentName, parentSessionID, parentTraceID string) string {
	return parentSpan(parentSessionID, parentTraceID) + "-" + newChildSpan() + "_" + sanitizeAgentName(agentName)
}

func parentSpan(parentSessionID, parentTraceID string) string {
	if m := spanPattern.FindStringSubmatch(parentSessionID); m != nil {
		return m[2]
	}
	if traceIDPattern.MatchString(parentTraceID) {
		return parentTraceID[8:24]
	}
	return defaultParentSpan
}

func newChildSpan() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:spanHexLen]
}

// sanitizeAgentName lowercases, collapses runs of non-alphanumerics to a
// single hyphen, strips leading/trailing hyphens and leading dots, and
// falls back to "agent" if nothing is left.
func sanitizeAgentName(raw string) string {
	s := strings.ToLower(raw)
	s = nonAlnumRun.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "agent"
	}
	return s
}
