package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandEnvVarsInDataWithDefault(t *testing.T) {
	os.Unsetenv("AMPLIFIER_TEST_VAR")
	got := ExpandEnvVarsInData("${AMPLIFIER_TEST_VAR:-fallback}")
	require.Equal(t, "fallback", got)
}

func TestExpandEnvVarsInDataBracedAndSimple(t *testing.T) {
	t.Setenv("AMPLIFIER_TEST_VAR", "42")
	require.Equal(t, 42, ExpandEnvVarsInData("${AMPLIFIER_TEST_VAR}"))
	require.Equal(t, 42, ExpandEnvVarsInData("$AMPLIFIER_TEST_VAR"))
}

func TestExpandEnvVarsInDataRecursesIntoContainers(t *testing.T) {
	t.Setenv("AMPLIFIER_TEST_VAR", "true")
	data := map[string]interface{}{
		"flag": "$AMPLIFIER_TEST_VAR",
		"list": []interface{}{"$AMPLIFIER_TEST_VAR"},
	}
	got := ExpandEnvVarsInData(data).(map[string]interface{})
	require.Equal(t, true, got["flag"])
	require.Equal(t, []interface{}{true}, got["list"])
}

func TestAmplifierHomePrefersEnvOverride(t *testing.T) {
	t.Setenv("AMPLIFIER_HOME", "/tmp/amplifier-test-home")
	home, err := AmplifierHome()
	require.NoError(t, err)
	require.Equal(t, "/tmp/amplifier-test-home", home)
}

func TestGetProviderAPIKeyFallsBackToConvention(t *testing.T) {
	t.Setenv("COHERE_API_KEY", "secret")
	require.Equal(t, "secret", GetProviderAPIKey("cohere"))
}
