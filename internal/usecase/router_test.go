package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shopstream/internal/domain"
)

type stubClassifier struct {
	code string
	err  error

	gotSystem  string
	gotMessage string
}

func (s *stubClassifier) Classify(_ context.Context, system, message string) (string, error) {
	s.gotSystem = system
	s.gotMessage = message
	return s.code, s.err
}

func TestRouteReturnsClassifierCode(t *testing.T) {
	cls := &stubClassifier{code: "2"}
	r := NewRouter(cls, discardLogger())

	got := r.Route(context.Background(), "show me rain jackets", domain.ModeStandard)
	if got != "2" {
		t.Errorf("Route = %q, want 2", got)
	}
	if !strings.Contains(cls.gotMessage, "show me rain jackets") {
		t.Errorf("classifier message missing user text: %q", cls.gotMessage)
	}
}

func TestRouteFallbackOnError(t *testing.T) {
	tests := []struct {
		mode domain.Mode
		want string
	}{
		{domain.ModeStandard, "4"},
		{domain.ModeAgent, "3"},
	}
	for _, tt := range tests {
		cls := &stubClassifier{err: errors.New("throttled")}
		r := NewRouter(cls, discardLogger())
		if got := r.Route(context.Background(), "hello", tt.mode); got != tt.want {
			t.Errorf("Route(mode=%s) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestRoutePromptSelectionByMode(t *testing.T) {
	cls := &stubClassifier{code: "1"}
	r := NewRouter(cls, discardLogger())

	r.Route(context.Background(), "where is my order", domain.ModeStandard)
	standard := cls.gotSystem
	r.Route(context.Background(), "where is my order", domain.ModeAgent)
	agent := cls.gotSystem

	if standard == agent {
		t.Error("same routing prompt used for both modes")
	}
	if !strings.Contains(standard, "assistant number") || !strings.Contains(agent, "assistant number") {
		t.Error("routing prompts missing output contract")
	}
}

func TestRouteRawCodeTrimmedByHandlerLookup(t *testing.T) {
	// The router hands back the model's raw answer; HandlerForCode absorbs
	// whitespace and unknown values.
	cls := &stubClassifier{code: " 5\n"}
	r := NewRouter(cls, discardLogger())

	code := r.Route(context.Background(), "compare these two", domain.ModeStandard)
	if kind := domain.HandlerForCode(code); kind != domain.HandlerCompareProducts {
		t.Errorf("HandlerForCode(%q) = %s, want compare_products", code, kind)
	}
}
