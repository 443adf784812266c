package pipeline

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteURL(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"double quoted", `    url = "http://localhost:8000/login"`, `    url = get_endpoint_url("/login")`},
		{"nested path", `url = "http://localhost:8000/api/v1/login"  # replace`, `url = get_endpoint_url("/api/v1/login")  # replace`},
		{"single quoted with query", `requests.get('https://api.example.com/v1/users?page=2')`, `requests.get(get_endpoint_url('/v1/users?page=2'))`},
		{"f-string", `url = f"http://localhost:8000/users/{user_id}"`, `url = get_endpoint_url(f"/users/{user_id}")`},
		{"raw prefix dropped", `url = r"http://localhost/a"`, `url = get_endpoint_url("/a")`},
		{"root path", `url = "http://localhost:8000/"`, `url = get_endpoint_url("/")`},
		{"first only", `a, b = "http://h/a", "http://h/b"`, `a, b = get_endpoint_url("/a"), "http://h/b"`},
		{"no path", `url = "http://localhost:8000"`, `url = "http://localhost:8000"`},
		{"relative", `url = get_endpoint_url("/login")`, `url = get_endpoint_url("/login")`},
		{"not a literal", `# see http://localhost/docs`, `# see http://localhost/docs`},
		{"mismatched quotes", `url = "http://localhost/a'`, `url = "http://localhost/a'`},
		{"triple double quoted", `    """http://localhost:8000/login"""`, `    """http://localhost:8000/login"""`},
		{"triple single quoted", "    '''http://localhost:8000/login'''", "    '''http://localhost:8000/login'''"},
		{"triple f-string", `doc = f"""http://h/users/{uid}"""`, `doc = f"""http://h/users/{uid}"""`},
		{"after triple quoted", `doc, url = """http://h/a""", "http://h/b"`, `doc, url = """http://h/a""", get_endpoint_url("/b")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteURL(tt.line, "get_endpoint_url"))
		})
	}
}

func TestRewriteURLResolverName(t *testing.T) {
	assert.Equal(t, `resolve_endpoint("/login")`, RewriteURL(`"http://localhost:8000/login"`, "resolve_endpoint"))
	assert.Equal(t, `    """http://localhost:8000/login"""`, RewriteURL(`    """http://localhost:8000/login"""`, "resolve_endpoint"))
}

func TestRewriteURLLeavesNoAbsoluteLiteral(t *testing.T) {
	absolute := regexp.MustCompile(`["']https?://`)
	arg := regexp.MustCompile(`resolve\(f?["']([^"']*)["']\)`)
	lines := []string{
		`r = requests.post("http://localhost:8000/login", json=payload)`,
		`r = requests.get('https://staging.example.com/v2/items/7', headers=h)`,
		`    endpoint = "http://127.0.0.1/health"`,
		`call(url=f"https://example.com/a/{x}/b")`,
	}
	for _, line := range lines {
		got := RewriteURL(line, "resolve")
		assert.False(t, absolute.MatchString(got), "absolute URL left in %q", got)
		assert.Equal(t, 1, strings.Count(got, "resolve("), got)
		m := arg.FindStringSubmatch(got)
		require.Len(t, m, 2, got)
		assert.True(t, strings.HasPrefix(m[1], "/"), "path %q", m[1])
	}
}
