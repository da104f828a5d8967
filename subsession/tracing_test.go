package subsession

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fullIDPattern = regexp.MustCompile(`^[0-9a-f]{16}-[0-9a-f]{16}_[a-z0-9-]+$`)

func TestGenerateSubSessionIDWithNoParentUsesZeroSpan(t *testing.T) {
	id := GenerateSubSessionID("zen-architect", "", "")
	require.Regexp(t, fullIDPattern, id)
	require.True(t, len(id) > len(defaultParentSpan))
	parent := id[:spanHexLen]
	require.Equal(t, defaultParentSpan, parent)
	require.Equal(t, "zen-architect", id[strings.Index(id, "_")+1:])
}

func TestGenerateSubSessionIDExtractsParentSpanFromParentSessionID(t *testing.T) {
	parentID := "1234567890abcdef-fedcba0987654321_parent-agent"
	id := GenerateSubSessionID("child", parentID, "")

	require.Regexp(t, fullIDPattern, id)
	require.Equal(t, "fedcba0987654321", id[:spanHexLen])
}

func TestGenerateSubSessionIDExtractsParentSpanFromTraceID(t *testing.T) {
	traceID := "00112233445566778899aabbccddeeff"
	id := GenerateSubSessionID("child", "", traceID)

	require.Regexp(t, fullIDPattern, id)
	require.Equal(t, traceID[8:24], id[:spanHexLen])
}

func TestGenerateSubSessionIDPrefersParentSessionIDOverTraceID(t *testing.T) {
	parentID := "1111111111111111-2222222222222222_parent"
	traceID := "33333333333333333333333333333333"[:32]
	id := GenerateSubSessionID("child", parentID, traceID)

	require.Equal(t, "2222222222222222", id[:spanHexLen])
}

func TestGenerateSubSessionIDProducesDistinctChildSpansEachCall(t *testing.T) {
	a := GenerateSubSessionID("agent", "", "")
	b := GenerateSubSessionID("agent", "", "")
	require.NotEqual(t, a, b)
}

func TestSanitizeAgentNameCollapsesAndTrims(t *testing.T) {
	cases := map[string]string{
		"Zen Architect":     "zen-architect",
		"  leading/trail  ": "leading-trail",
		"a___b":              "a-b",
		"...dotted":          "dotted",
		"":                   "agent",
		"!!!":                "agent",
		"UPPER_CASE-name":    "upper-case-name",
	}
	for input, want := range cases {
		require.Equal(t, want, sanitizeAgentName(input), "input %q", input)
	}
}

func TestGenerateSubSessionIDRejectsMalformedParentSessionID(t *testing.T) {
	id := GenerateSubSessionID("child", "not-a-valid-parent-id", "")
	require.Equal(t, defaultParentSpan, id[:spanHexLen])
}
