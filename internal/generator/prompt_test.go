package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/testgen/internal/pipeline"
)

func TestScenarioPromptIncludesInputs(t *testing.T) {
	p := ScenarioPrompt("Users can log in.\n", "openapi: 3.0.0\n")
	assert.Contains(t, p, "Users can log in.")
	assert.Contains(t, p, "openapi: 3.0.0")
	assert.Contains(t, p, "Each scenario should be one line only.")
}

func TestTestPromptNamesFixtureAndResolver(t *testing.T) {
	o := pipeline.DefaultOptions()
	o.Fixture = "token"
	o.Resolver = "resolve_endpoint"
	p := TestPrompt("paths: {}", "login succeeds", o)
	assert.Contains(t, p, "login succeeds")
	assert.Contains(t, p, "fixture called 'token'")
	assert.Contains(t, p, "'Bearer {token}'")
	assert.Contains(t, p, "resolve_endpoint(path)")
	assert.Contains(t, p, "from BASE_URL")
	assert.Contains(t, p, "Do NOT hardcode the full URL")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("登录"))
}
