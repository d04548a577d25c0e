package identity

import "testing"

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "User@Example.COM", want: "user@example.com"},
		{in: "  padded@example.com  ", want: "padded@example.com"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Fatalf("NormalizeEmail(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "user@example.com", want: true},
		{in: "first.last+tag@sub.example.co", want: true},
		{in: "no-at-sign", want: false},
		{in: "missing@tld", want: false},
		{in: "@example.com", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := ValidEmail(tc.in); got != tc.want {
			t.Fatalf("ValidEmail(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}
