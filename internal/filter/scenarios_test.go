package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenariosStripsMarkers(t *testing.T) {
	text := "Test scenarios:\n" +
		"\n" +
		"- Login succeeds with valid credentials\n" +
		"* Login fails with wrong password\r\n" +
		"1. Rejects empty password\n" +
		"2) Rejects missing username\n" +
		"(3) Locks the account after five failures\n" +
		"   -- **Returns 429 when rate limited**   \n" +
		"\"Accepts email as username\"\n" +
		"```\n" +
		"## Edge cases\n"

	want := []string{
		"Test scenarios:",
		"Login succeeds with valid credentials",
		"Login fails with wrong password",
		"Rejects empty password",
		"Rejects missing username",
		"Locks the account after five failures",
		"Returns 429 when rate limited",
		"Accepts email as username",
	}
	assert.Equal(t, want, Scenarios(text))
}

func TestScenariosEmpty(t *testing.T) {
	assert.Empty(t, Scenarios(""))
	assert.Empty(t, Scenarios("\n  \n```\n"))
}

func TestScenariosKeepsInnerHyphens(t *testing.T) {
	assert.Equal(t, []string{"Sign-up rejects re-used e-mail"}, Scenarios("- Sign-up rejects re-used e-mail -"))
}
