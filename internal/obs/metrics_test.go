package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"/metrics": "/metrics",
		"/users":   "/users",
		"/users/11111111-1111-1111-1111-111111111111":                                            "/users/:id",
		"/users/alice@example.com":                                                               "/users/alice@example.com",
		"/users/11111111-1111-1111-1111-111111111111/sessions":                                   "/users/:id/sessions",
		"/memberships/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222": "/memberships/:id/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
