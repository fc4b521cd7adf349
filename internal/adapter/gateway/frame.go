package gateway

import (
	"fmt"
	"strings"

	"shopstream/internal/domain"
)

// inboundFrame is the JSON message a client sends to start one turn.
type inboundFrame struct {
	Message         string `json:"message"`
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	Persona         string `json:"user_persona,omitempty"`
	DiscountPersona string `json:"user_discount_persona,omitempty"`
	UseAgent        bool   `json:"use_agent,omitempty"`
}

// turnRequest validates the frame and converts it to a domain turn request.
// An empty session_id falls back to the connection ID, so a client that
// never sends one still gets a stable per-connection conversation.
func (f inboundFrame) turnRequest(connID string) (domain.TurnRequest, error) {
	if strings.TrimSpace(f.Message) == "" {
		return domain.TurnRequest{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(f.UserID) == "" {
		return domain.TurnRequest{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	sessionID := f.SessionID
	if sessionID == "" {
		sessionID = connID
	}

	mode := domain.ModeStandard
	if f.UseAgent {
		mode = domain.ModeAgent
	}

	return domain.TurnRequest{
		SessionID:       sessionID,
		UserID:          f.UserID,
		UserName:        f.UserName,
		UserMessage:     f.Message,
		Persona:         f.Persona,
		DiscountPersona: f.DiscountPersona,
		Mode:            mode,
	}, nil
}
