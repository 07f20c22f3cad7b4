package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", http.NoBody)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret-token-123", "rotated-token")(okHandler)

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "Bearer secret-token-123", http.StatusOK},
		{"second token", "Bearer rotated-token", http.StatusOK},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized},
		{"token prefix only", "Bearer secret", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"Basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"lowercase bearer", "bearer secret-token-123", http.StatusUnauthorized},
		{"no prefix", "secret-token-123", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(h, tt.value)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if got := rec.Header().Get("WWW-Authenticate"); got != realm {
					t.Errorf("WWW-Authenticate = %q, want %q", got, realm)
				}
				if got := rec.Header().Get("Content-Type"); got != "application/json" {
					t.Errorf("Content-Type = %q", got)
				}
			}
		})
	}
}

func TestBearerToken_NoTokensPassesThrough(t *testing.T) {
	t.Parallel()

	for _, tokens := range [][]string{nil, {""}} {
		h := BearerToken(tokens...)(okHandler)
		if rec := serve(h, ""); rec.Code != http.StatusOK {
			t.Errorf("tokens %q: status = %d, want 200", tokens, rec.Code)
		}
	}
}
