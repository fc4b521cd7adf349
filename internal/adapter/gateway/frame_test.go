package gateway

import (
	"errors"
	"testing"

	"shopstream/internal/domain"
)

func TestFrameTurnRequest(t *testing.T) {
	frame := inboundFrame{
		Message:         "show me jackets",
		UserID:          "u1",
		UserName:        "Ana",
		SessionID:       "s1",
		Persona:         "outdoorsy",
		DiscountPersona: "bargain hunter",
	}

	req, err := frame.turnRequest("conn-1")
	if err != nil {
		t.Fatalf("turnRequest: %v", err)
	}

	if req.SessionID != "s1" || req.UserID != "u1" || req.UserMessage != "show me jackets" {
		t.Errorf("req = %+v", req)
	}
	if req.Persona != "outdoorsy" || req.DiscountPersona != "bargain hunter" {
		t.Errorf("personas = %q / %q", req.Persona, req.DiscountPersona)
	}
	if req.Mode != domain.ModeStandard {
		t.Errorf("Mode = %q, want standard", req.Mode)
	}
}

func TestFrameUseAgentSelectsAgentMode(t *testing.T) {
	frame := inboundFrame{Message: "hi", UserID: "u1", UseAgent: true}

	req, err := frame.turnRequest("conn-1")
	if err != nil {
		t.Fatalf("turnRequest: %v", err)
	}
	if req.Mode != domain.ModeAgent {
		t.Errorf("Mode = %q, want agent", req.Mode)
	}
}

func TestFrameDefaultsSessionToConnection(t *testing.T) {
	frame := inboundFrame{Message: "hi", UserID: "u1"}

	req, err := frame.turnRequest("conn-42")
	if err != nil {
		t.Fatalf("turnRequest: %v", err)
	}
	if req.SessionID != "conn-42" {
		t.Errorf("SessionID = %q, want conn-42", req.SessionID)
	}
}

func TestFrameValidation(t *testing.T) {
	tests := []struct {
		name  string
		frame inboundFrame
	}{
		{"missing message", inboundFrame{UserID: "u1"}},
		{"blank message", inboundFrame{Message: "   ", UserID: "u1"}},
		{"missing user id", inboundFrame{Message: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.frame.turnRequest("conn-1")
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
