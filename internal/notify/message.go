package notify

import (
	"fmt"
	"strings"

	"github.com/spec-kit/mentor-queue/internal/events"
)

const (
	previewLimit    = 200
	defaultPriority = 5
)

// Message is a channel-agnostic notification.
type Message struct {
	Title    string
	Body     string
	Priority int
	// Markdown is the untruncated ticket content for channels that render it.
	Markdown string
}

// TicketCreatedMessage formats the announcement for a new help request.
func TicketCreatedMessage(p events.TicketCreatedPayload) Message {
	question := orDefault(p.Question, "Untitled")
	location := orDefault(p.Location, "Not specified")
	tags := "No tags"
	if len(p.Tags) > 0 {
		tags = strings.Join(p.Tags, ", ")
	}

	preview := p.Content
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit]) + "..."
	}

	body := fmt.Sprintf("Location: %s\nTags: %s\n\n%s", location, tags, preview)
	return Message{
		Title:    "New Help Request: " + question,
		Body:     strings.TrimSpace(body),
		Priority: defaultPriority,
		Markdown: p.Content,
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
