package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"empty params", "def test_x():", "def test_x(access_token):"},
		{"appends", "def test_x(client):", "def test_x(client, access_token):"},
		{"present", "def test_x(access_token):", "def test_x(access_token):"},
		{"present with spaces", "def test_x( access_token ):", "def test_x( access_token ):"},
		{"present annotated", "def test_x(access_token: str):", "def test_x(access_token: str):"},
		{"duplicate", "def test_x(access_token, client, access_token):", "def test_x(access_token, client):"},
		{"before defaults", "def test_x(a, b=2):", "def test_x(a, access_token, b=2):"},
		{"before kwargs", "def test_x(**kwargs):", "def test_x(access_token, **kwargs):"},
		{"nested call default", "def test_x(data=dict(a=1)) -> None:", "def test_x(access_token, data=dict(a=1)) -> None:"},
		{"paren in string default", `def test_x(msg=")"):`, `def test_x(access_token, msg=")"):`},
		{"method keeps indent", "    def test_m(self):", "    def test_m(self, access_token):"},
		{"async", "async def test_a(client) -> None:", "async def test_a(client, access_token) -> None:"},
		{"trailing comma", "def test_x(a,):", "def test_x(a, access_token):"},
		{"similar name", "def test_x(access_token_value):", "def test_x(access_token_value, access_token):"},
		{"unmatched", "def test_x(:", "def test_x(:"},
		{"no parens", "def test_x", "def test_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSignature(tt.line, "access_token"))
		})
	}
}

func TestNormalizeSignatureFixtureExactlyOnce(t *testing.T) {
	lines := []string{
		"def test_a():",
		"def test_a(token):",
		"def test_a(  token  ):",
		"def test_a(token, token):",
		"def test_a(client, *, token=None):",
		"def test_a(client, timeout=3, **kw) -> bool:",
	}
	for _, line := range lines {
		got := NormalizeSignature(line, "token")
		open := strings.IndexByte(got, '(')
		closing := matchParen(got, open)
		count := 0
		for _, p := range splitParams(got[open+1 : closing]) {
			if paramName(p) == "token" {
				count++
			}
		}
		assert.Equal(t, 1, count, "from %q got %q", line, got)
	}
}

func TestNormalizeSignatureEmptyFixture(t *testing.T) {
	assert.Equal(t, "def test_x():", NormalizeSignature("def test_x():", " "))
}
