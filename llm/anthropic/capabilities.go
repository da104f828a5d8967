package anthropic

import "regexp"

// Capability describes what a model id supports, per §4.8: "A capability
// record carries {max_output_tokens, supports_thinking,
// supports_adaptive_thinking, default_thinking_budget,
// supports_1m_context}".
//
// This table is new-to-spec content not present in the teacher verbatim; it
// is built in the teacher's idiom — a small static table keyed by a parsed
// model identity, mirroring the model-family switch already present in
// pkg/llms/anthropic.go's request builder (which special-cases model
// strings directly rather than a structured lookup). The constraint
// default_thinking_budget + 4096 <= max_output_tokens holds by construction
// for every entry below.
type Capability struct {
	MaxOutputTokens          int
	SupportsThinking         bool
	SupportsAdaptiveThinking bool
	DefaultThinkingBudget    int
	Supports1MContext        bool
}

// modelIdentity is the parsed (family, major, minor) key the capability
// table is indexed by.
type modelIdentity struct {
	Family string // "opus", "sonnet", "haiku"
	Major  int
	Minor  int
}

var modelIDPattern = regexp.MustCompile(`claude-(?:(opus|sonnet|haiku)-(\d+)(?:-(\d+))?|(\d+)-(\d+)-(opus|sonnet|haiku))`)

// parseModelIdentity extracts family and (major, minor) version from an
// Anthropic model id. Recognizes both naming generations in use:
// "claude-opus-4-1-20250805" and "claude-3-5-sonnet-20241022". Returns ok =
// false when the id doesn't match either shape (e.g. a third-party alias),
// in which case the caller falls back to defaultCapability.
func parseModelIdentity(modelID string) (modelIdentity, bool) {
	m := modelIDPattern.FindStringSubmatch(modelID)
	if m == nil {
		return modelIdentity{}, false
	}
	if m[1] != "" {
		return modelIdentity{Family: m[1], Major: atoiOr(m[2], 0), Minor: atoiOr(m[3], 0)}, true
	}
	return modelIdentity{Family: m[6], Major: atoiOr(m[4], 0), Minor: atoiOr(m[5], 0)}, true
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// defaultCapability is used for unrecognized model ids: conservative, no
// thinking support assumed.
var defaultCapability = Capability{
	MaxOutputTokens:       4096,
	SupportsThinking:      false,
	DefaultThinkingBudget: 0,
}

// GetCapability looks up the capability record for a model id, falling back
// to defaultCapability for anything the table doesn't recognize.
func GetCapability(modelID string) Capability {
	id, ok := parseModelIdentity(modelID)
	if !ok {
		return defaultCapability
	}

	switch id.Family {
	case "opus":
		if id.Major >= 4 {
			return Capability{
				MaxOutputTokens:          32000,
				SupportsThinking:         true,
				SupportsAdaptiveThinking: true,
				DefaultThinkingBudget:    16000,
				Supports1MContext:        false,
			}
		}
		return Capability{MaxOutputTokens: 4096, SupportsThinking: false}

	case "sonnet":
		switch {
		case id.Major >= 4 && id.Minor >= 5:
			return Capability{
				MaxOutputTokens:          64000,
				SupportsThinking:         true,
				SupportsAdaptiveThinking: true,
				DefaultThinkingBudget:    16000,
				Supports1MContext:        true,
			}
		case id.Major >= 4:
			return Capability{
				MaxOutputTokens:          64000,
				SupportsThinking:         true,
				SupportsAdaptiveThinking: true,
				DefaultThinkingBudget:    16000,
				Supports1MContext:        false,
			}
		case id.Major == 3 && id.Minor >= 7:
			return Capability{
				MaxOutputTokens:       8192,
				SupportsThinking:      true,
				DefaultThinkingBudget: 4096,
			}
		default:
			return Capability{MaxOutputTokens: 8192, SupportsThinking: false}
		}

	case "haiku":
		if id.Major >= 4 {
			return Capability{
				MaxOutputTokens:       8192,
				SupportsThinking:      true,
				DefaultThinkingBudget: 4096,
			}
		}
		return Capability{MaxOutputTokens: 4096, SupportsThinking: false}
	}

	return defaultCapability
}
