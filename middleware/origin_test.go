package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/sse", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := OriginChecker(nil)
	assert.True(t, open(req("http://evil.example")))

	check := OriginChecker([]string{"http://localhost:3000"})
	assert.True(t, check(req("http://localhost:3000")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("http://evil.example")))
}
