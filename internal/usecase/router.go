package usecase

import (
	"context"
	"log/slog"

	"shopstream/internal/domain"
)

// Router decides which specialized handler answers a turn by asking a small
// classifier model for an assistant number.
type Router struct {
	classifier domain.Classifier
	logger     *slog.Logger
}

func NewRouter(classifier domain.Classifier, logger *slog.Logger) *Router {
	return &Router{classifier: classifier, logger: logger}
}

// Route returns the raw routing code for the message. Classification failures
// degrade to the mode's fallback code so the turn always proceeds.
func (r *Router) Route(ctx context.Context, userMessage string, mode domain.Mode) string {
	code, err := r.classifier.Classify(ctx, systemPromptForRouting(mode), routerQuestion(userMessage))
	if err != nil {
		fallback := domain.FallbackCode(mode)
		r.logger.Error("routing classification failed, using fallback",
			"error", err, "fallback", fallback)
		return fallback
	}

	r.logger.Info("router decision", "code", code, "mode", mode)
	return code
}
