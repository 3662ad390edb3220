package model

import (
	"errors"
	"strings"
	"time"
)

// ErrChatForbidden is returned by the transport when the bot can no longer
// write to a chat (kicked, left, blocked).
var ErrChatForbidden = errors.New("chat is not accessible")

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
)

type Attachment struct {
	Kind     AttachmentKind
	FileID   string
	MimeType string
	// URL is filled lazily by the pipeline
	URL string
}

// IsImage reports whether the attachment can be sent to an image describer.
func (a Attachment) IsImage() bool {
	if a.Kind == AttachmentPhoto {
		return true
	}

	return strings.HasPrefix(a.MimeType, "image/")
}

// Message is an inbound chat message, transport independent.
type Message struct {
	ID        string
	ChatID    string
	ChatType  ChatType
	ChatTitle string

	UserID   string
	UserName string
	IsBot    bool

	Text    string
	Caption string

	ReplyToID     string
	ReplyToUserID string

	Attachments []Attachment
	Date        time.Time
}

func (m *Message) IsPrivate() bool {
	return m.ChatType == ChatPrivate
}

// Body returns the text, falling back to the media caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}

	return m.Caption
}

func (m *Message) HasImages() bool {
	for _, a := range m.Attachments {
		if a.IsImage() {
			return true
		}
	}

	return false
}
