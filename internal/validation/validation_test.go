package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{name: "plain ten digits", phone: "5551234567", want: "5551234567"},
		{name: "formatted", phone: "(555) 123-4567", want: "5551234567"},
		{name: "with country code", phone: "+1 555 123 4567", want: "5551234567"},
		{name: "short number", phone: "12345", want: "12345"},
		{name: "empty", phone: "", want: ""},
		{name: "letters only", phone: "no digits", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.phone); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.phone, got, tt.want)
			}
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "user.name@example.com", "x+tag@sub.domain.org"}
	invalid := []string{"", "plain", "@no-local.com", "no-domain@", "two@@signs.com", "dot@nodot"}

	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = false, want true", email)
		}
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = true, want false", email)
		}
	}
}

func TestTrimDateOnly(t *testing.T) {
	if got := TrimDateOnly("1990-04-01T00:00:00Z"); got != "1990-04-01" {
		t.Errorf("TrimDateOnly = %q, want 1990-04-01", got)
	}
	if got := TrimDateOnly("1990-04-01"); got != "1990-04-01" {
		t.Errorf("TrimDateOnly = %q, want 1990-04-01", got)
	}
}
