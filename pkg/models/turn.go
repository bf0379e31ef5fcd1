package models

import (
	"time"
)

// Role indicates the turn author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"

	// RoleToolCall only appears in display conversations. The model-facing
	// conversation never carries this role; tool activity reaches the model
	// as tool_result framed user turns.
	RoleToolCall Role = "tool_call"
)

// PartKind discriminates content parts within a turn.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// ContentPart is one piece of a turn's content: either text or a referenced
// image. Image parts carry either a URL or an inline data URI plus the
// detected media type.
type ContentPart struct {
	Kind      PartKind `json:"kind"`
	Text      string   `json:"text,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// ImagePart builds an image content part.
func ImagePart(url, mediaType string) ContentPart {
	return ContentPart{Kind: PartImage, ImageURL: url, MediaType: mediaType}
}

// Turn is one entry in a conversation. Content is either plain text or an
// ordered sequence of parts; Parts wins when both are set.
type Turn struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content,omitempty"`
	Parts     []ContentPart `json:"parts,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewTurn creates a text-only turn stamped with the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, CreatedAt: time.Now()}
}

// Text returns the textual content of the turn. For multi-part turns this is
// the concatenation of the text parts in order.
func (t Turn) Text() string {
	if len(t.Parts) == 0 {
		return t.Content
	}
	var out string
	for _, p := range t.Parts {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// HasImages reports whether any part of the turn references an image.
func (t Turn) HasImages() bool {
	for _, p := range t.Parts {
		if p.Kind == PartImage {
			return true
		}
	}
	return false
}

// DisplayTurn is an entry in the display conversation consumed by external
// observers (CLI transcript, SSE stream). It is never sent to the model.
type DisplayTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
