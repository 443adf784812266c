package main

import "fmt"

const defaultConfigContent = `llm:
  provider: "openai"
  api_key: ""
  base_url: "https://api.openai.com/v1"
  model: "gpt-4"
  max_tokens: 500
  scenario_temperature: 0.3
  test_temperature: 0.2

paths:
  apis_dir: "apis"
  tests_dir: "tests"
  include: "*"

pipeline:
  fixture: "access_token"
  base_constant: "BASE_URL"
  resolver: "get_endpoint_url"
  default_base_url: "http://localhost:8000"
  comment_marker: "#"
  policy: "scoped"

sanitize:
  fields:
    - password
    - secret
    - client_secret
    - token
    - access_token
    - refresh_token
    - api_key
    - authorization
  replacement: "***REDACTED***"

server:
  host: "127.0.0.1"
  port: 3000

watch:
  debounce: "500ms"

log:
  level: "info"
`

// conftestContent is the pytest fixture the generated tests depend on. It
// exchanges client credentials from .env for a bearer token.
func conftestContent(fixture string) string {
	return fmt.Sprintf(`import os

import pytest
import requests
from dotenv import load_dotenv

load_dotenv()


@pytest.fixture(scope="session")
def %s():
    """Return a bearer token for the API under test.

    Reads API_CLIENT_ID, API_CLIENT_SECRET and TOKEN_URL from the environment
    (.env file).
    """
    client_id = os.environ.get("API_CLIENT_ID")
    client_secret = os.environ.get("API_CLIENT_SECRET")
    token_url = os.environ.get("TOKEN_URL")
    if not all([client_id, client_secret, token_url]):
        raise RuntimeError("API_CLIENT_ID, API_CLIENT_SECRET and TOKEN_URL must be set in your .env file.")
    response = requests.post(token_url, data={"client_id": client_id, "client_secret": client_secret})
    response.raise_for_status()
    return response.json().get("access_token", "dummy_token")
`, fixture)
}
