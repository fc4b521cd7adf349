package usecase

import (
	"context"
	"log/slog"
	"strings"

	"shopstream/internal/domain"
)

// Section markers embedded by the generation prompts. The close variants
// cover malformed forms the upstream model has been observed to emit.
const (
	productsOpen = "<|PRODUCTS|>"
	ordersOpen   = "<|ORDERS|>"
)

var (
	productsClose = []string{"<|/PRODUCTS|>", "<|/PRODUCTS>", "</|PRODUCTS|>"}
	ordersClose   = []string{"<|/ORDERS|>", "<|/ORDERS>", "</|ORDERS|>"}

	// Any marker whose presence means the buffer cannot be flushed blindly.
	partialMarkers = []string{
		productsOpen, ordersOpen,
		"<|/PRODUCTS|>", "<|/ORDERS|>",
		"</|PRODUCTS|>", "</|ORDERS|>",
	}
)

// safetyMargin is how many trailing bytes are withheld from display when no
// marker has been seen, so a marker split across increments cannot leak.
// Must be at least as long as the longest marker literal.
const safetyMargin = 20

// StreamParser incrementally consumes text increments from one streaming
// generation call, forwarding safe narrative text to the sink immediately
// and extracting at most one delimited section (products or orders) as
// structured events.
//
// Not safe for concurrent use; owned by the single flow driving one stream.
type StreamParser struct {
	sink   domain.OutputSink
	logger *slog.Logger

	// Read-only reference collections for resolving extracted identifiers.
	searchResults []domain.SearchHit
	orders        []domain.Order

	buffer      string
	complete    strings.Builder
	contentSent bool

	chunksProcessed int
	sectionsFound   int
}

// NewStreamParser creates a parser for one streaming session. The reference
// collections may be nil when no candidate records are available yet.
func NewStreamParser(sink domain.OutputSink, logger *slog.Logger, searchResults []domain.SearchHit, orders []domain.Order) *StreamParser {
	return &StreamParser{
		sink:          sink,
		logger:        logger,
		searchResults: searchResults,
		orders:        orders,
	}
}

// ParseChunk consumes one text increment. Empty increments are a no-op.
// Display and structured events are emitted through the sink; failures
// degrade to plain text and are never returned to the caller.
func (p *StreamParser) ParseChunk(ctx context.Context, chunk string) {
	if chunk == "" {
		return
	}

	p.chunksProcessed++
	p.complete.WriteString(chunk)
	p.buffer += chunk

	// Once a structured section has been dispatched, later increments are
	// absorbed into the complete-response bookkeeping only.
	if p.contentSent {
		return
	}

	if p.processCompleteSections(ctx) {
		return
	}

	p.handleStreamingText(ctx)
}

// Flush forcibly emits the buffered text as plain content and clears the
// buffer without closing the session. Used to put a hard boundary before
// tool-call content arrives.
func (p *StreamParser) Flush(ctx context.Context) {
	p.sendText(ctx, p.buffer)
	p.buffer = ""
}

// Finalize flushes withheld text (unless a structured section was already
// dispatched), emits the terminal stream_end event, and releases the buffer.
func (p *StreamParser) Finalize(ctx context.Context) {
	if !p.contentSent && strings.TrimSpace(p.buffer) != "" {
		p.sendText(ctx, p.buffer)
	}

	if err := p.sink.Send(ctx, domain.ClientEvent{Type: domain.EventStreamEnd}); err != nil {
		p.logger.Warn("stream parser: send stream_end failed", "error", err)
	}

	p.logger.Info("stream parser completed",
		"chunks", p.chunksProcessed,
		"sections", p.sectionsFound,
		"response_chars", p.complete.Len(),
	)
	p.buffer = ""
}

// CompleteResponse returns the full concatenation of all increments received
// so far, markers included.
func (p *StreamParser) CompleteResponse() string { return p.complete.String() }

// SectionsFound reports how many structured sections were dispatched.
func (p *StreamParser) SectionsFound() int { return p.sectionsFound }

// processCompleteSections dispatches a fully delimited section if one is
// present. Products is searched before orders; only one section is processed
// per call.
func (p *StreamParser) processCompleteSections(ctx context.Context) bool {
	if loc, ok := findSection(p.buffer, productsOpen, productsClose); ok {
		p.processSection(ctx, loc, p.emitProducts)
		return true
	}
	if loc, ok := findSection(p.buffer, ordersOpen, ordersClose); ok {
		p.processSection(ctx, loc, p.emitOrders)
		return true
	}
	return false
}

// sectionLoc marks a complete delimited section within the buffer.
type sectionLoc struct {
	start        int // index of the open marker
	contentStart int // first byte after the open marker
	contentEnd   int // index of the close marker
	end          int // first byte after the close marker
}

// findSection locates the earliest complete section: the first open marker
// followed by the earliest close variant after it.
func findSection(buf, open string, closes []string) (sectionLoc, bool) {
	start := strings.Index(buf, open)
	if start < 0 {
		return sectionLoc{}, false
	}
	contentStart := start + len(open)

	contentEnd, end := -1, -1
	for _, c := range closes {
		idx := strings.Index(buf[contentStart:], c)
		if idx < 0 {
			continue
		}
		idx += contentStart
		if contentEnd == -1 || idx < contentEnd {
			contentEnd = idx
			end = idx + len(c)
		}
	}
	if contentEnd < 0 {
		return sectionLoc{}, false
	}
	return sectionLoc{start: start, contentStart: contentStart, contentEnd: contentEnd, end: end}, true
}

// processSection emits the narrative text preceding the section, resolves
// and dispatches the section body, and latches the content-sent state. If
// dispatch fails the whole buffer degrades to plain text so nothing is lost.
func (p *StreamParser) processSection(ctx context.Context, loc sectionLoc, emit func(context.Context, string) error) {
	before := p.buffer[:loc.start]
	if strings.TrimSpace(before) != "" {
		p.sendText(ctx, before)
	}

	content := strings.TrimSpace(p.buffer[loc.contentStart:loc.contentEnd])
	if err := emit(ctx, content); err != nil {
		p.logger.Error("stream parser: section dispatch failed", "error", err)
		p.sendText(ctx, p.buffer)
		return
	}

	p.contentSent = true
	p.buffer = ""
	p.sectionsFound++
}

// handleStreamingText forwards safe text when no complete section is present.
func (p *StreamParser) handleStreamingText(ctx context.Context) {
	if p.hasPartialMarkers() {
		p.handlePartialSections(ctx)
		return
	}
	p.sendSafeText(ctx)
}

func (p *StreamParser) hasPartialMarkers() bool {
	for _, m := range partialMarkers {
		if strings.Contains(p.buffer, m) {
			return true
		}
	}
	return false
}

// handlePartialSections emits the text preceding the earliest open marker
// and retains everything from the marker onward until the section completes.
func (p *StreamParser) handlePartialSections(ctx context.Context) {
	earliest := len(p.buffer)
	for _, marker := range []string{productsOpen, ordersOpen} {
		if pos := strings.Index(p.buffer, marker); pos >= 0 && pos < earliest {
			earliest = pos
		}
	}

	if earliest > 0 {
		safe := p.buffer[:earliest]
		p.sendText(ctx, safe)
		p.buffer = p.buffer[earliest:]
	}
}

// sendSafeText emits all but the trailing safety margin, so a marker split
// across increments can never leak to the display.
func (p *StreamParser) sendSafeText(ctx context.Context) {
	if len(p.buffer) <= safetyMargin {
		return
	}

	safeLen := len(p.buffer) - safetyMargin
	safe := p.buffer[:safeLen]
	p.buffer = p.buffer[safeLen:]

	if strings.TrimSpace(safe) != "" {
		p.sendText(ctx, safe)
	}
}

func (p *StreamParser) sendText(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := p.sink.Send(ctx, domain.TextChunk(text)); err != nil {
		p.logger.Warn("stream parser: send text chunk failed", "error", err)
	}
}
