package gateway

import (
	"errors"
	"testing"

	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
)

func TestStaticTokenAuth(t *testing.T) {
	auth := NewStaticTokenAuth([]config.Token{
		{Token: "secret-a", Name: "web"},
		{Token: "secret-b", Name: "mobile"},
	})

	info, err := auth.Authenticate("secret-b")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Name != "mobile" {
		t.Errorf("Name = %q, want mobile", info.Name)
	}
}

func TestStaticTokenAuthRejectsUnknown(t *testing.T) {
	auth := NewStaticTokenAuth([]config.Token{
		{Token: "secret-a", Name: "web"},
	})

	for _, token := range []string{"", "wrong", "secret-a "} {
		if _, err := auth.Authenticate(token); !errors.Is(err, domain.ErrAuthInvalid) {
			t.Errorf("Authenticate(%q): expected ErrAuthInvalid, got %v", token, err)
		}
	}
}

func TestStaticTokenAuthEmptyList(t *testing.T) {
	auth := NewStaticTokenAuth(nil)
	if _, err := auth.Authenticate(""); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("expected ErrAuthInvalid, got %v", err)
	}
}
