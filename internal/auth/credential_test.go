package auth

import "testing"

func TestParseCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		wantKind   CredentialKind
		wantScheme string
		wantToken  string
	}{
		{"bearer jwt", "Bearer eyJhbGciOi.x.y", CredentialBearer, "Bearer", "eyJhbGciOi.x.y"},
		{"bearer api key", "Bearer l3_abc123_secret", CredentialAPIKey, "Bearer", "l3_abc123_secret"},
		{"marker anywhere", "Token something-l3_-ish", CredentialAPIKey, "Token", "something-l3_-ish"},
		{"empty header", "", CredentialBearer, "", ""},
		{"scheme only", "Bearer", CredentialBearer, "Bearer", ""},
		{"token keeps inner spaces", "Bearer a b", CredentialBearer, "Bearer", "a b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseCredential(tt.header)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Scheme != tt.wantScheme || got.Token != tt.wantToken {
				t.Errorf("got (%q, %q), want (%q, %q)", got.Scheme, got.Token, tt.wantScheme, tt.wantToken)
			}
		})
	}
}

func TestCredential_IsBearer(t *testing.T) {
	t.Parallel()

	if !ParseCredential("bearer x").IsBearer() {
		t.Error("scheme match should be case-insensitive")
	}
	if ParseCredential("Basic x").IsBearer() {
		t.Error("Basic is not Bearer")
	}
}

func TestNoAccountSelected(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"", "undefined"} {
		if !noAccountSelected(v) {
			t.Errorf("noAccountSelected(%q) = false", v)
		}
	}
	if noAccountSelected("Undefined") {
		t.Error("only the exact literal falls back")
	}
}
