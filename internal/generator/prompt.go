package generator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yourorg/testgen/internal/pipeline"
)

const scenarioSystemPrompt = "You are a QA analyst. Generate clear API test scenarios from requirements and OpenAPI specifications."

const testSystemPrompt = "You are a helpful assistant that writes Python test functions using pytest and requests."

// ScenarioPrompt asks for one-line test scenarios covering the requirements
// and the OpenAPI document.
func ScenarioPrompt(requirements, swagger string) string {
	return fmt.Sprintf("Based on the following API requirements:\n\n%s\n\n"+
		"And this OpenAPI specification:\n\n%s\n\n"+
		"Generate concise test scenarios that cover both the requirements and API endpoints. "+
		"Each scenario should be one line only.",
		strings.TrimSpace(requirements), strings.TrimSpace(swagger))
}

// TestPrompt asks for a single pytest function for scenario. The names in o
// must match the preamble and conftest the file is assembled with.
func TestPrompt(swagger, scenario string, o pipeline.Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following OpenAPI spec:\n%s\n\n", strings.TrimSpace(swagger))
	fmt.Fprintf(&b, "And this test scenario:\n%s\n\n", scenario)
	b.WriteString("Write a Python pytest test function using the requests library. ")
	fmt.Fprintf(&b, "Assume there is a pytest fixture called '%s' that provides a valid token string. ", o.Fixture)
	fmt.Fprintf(&b, "The test function should accept '%s' as a parameter and use it in the Authorization header as 'Bearer {%s}'. ", o.Fixture, o.Fixture)
	b.WriteString("Do NOT hardcode any client_id, client_secret, or sensitive info. Only include valid Python code. ")
	fmt.Fprintf(&b, "Use the helper function %s(path) to construct the full endpoint URL from %s and the endpoint path (e.g., '/login'). ", o.Resolver, o.BaseConstant)
	b.WriteString("Do NOT hardcode the full URL in the test.")
	return b.String()
}

// EstimateTokens gives a rough token count, about four characters per token
// for Latin text and two for CJK.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var wide, other int
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			wide++
			continue
		}
		other++
	}
	return (wide+1)/2 + (other+3)/4
}
