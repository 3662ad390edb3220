package telegram

import (
	"strconv"
	"time"

	"tgbridge/app/model"

	"github.com/elliotchance/pie/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// convertMessage maps an API message to the transport independent form.
// It returns nil for updates without a chat.
func convertMessage(m *tgbotapi.Message) *model.Message {
	if m == nil || m.Chat == nil {
		return nil
	}

	msg := &model.Message{
		ID:        strconv.Itoa(m.MessageID),
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		ChatType:  model.ChatType(m.Chat.Type),
		ChatTitle: chatTitle(m.Chat),
		Text:      m.Text,
		Caption:   m.Caption,
		Date:      time.Unix(int64(m.Date), 0),
	}

	if m.From != nil {
		msg.UserID = strconv.FormatInt(m.From.ID, 10)
		msg.UserName = userName(m.From)
		msg.IsBot = m.From.IsBot
	} else if m.SenderChat != nil {
		msg.UserID = strconv.FormatInt(m.SenderChat.ID, 10)
		msg.UserName = chatTitle(m.SenderChat)
	}

	if reply := m.ReplyToMessage; reply != nil {
		msg.ReplyToID = strconv.Itoa(reply.MessageID)
		if reply.From != nil {
			msg.ReplyToUserID = strconv.FormatInt(reply.From.ID, 10)
		}
	}

	if len(m.Photo) > 0 {
		// sizes come smallest first, keep the largest
		largest := pie.SortUsing(m.Photo, func(a, b tgbotapi.PhotoSize) bool {
			return a.Width*a.Height < b.Width*b.Height
		})[len(m.Photo)-1]

		msg.Attachments = append(msg.Attachments, model.Attachment{
			Kind:     model.AttachmentPhoto,
			FileID:   largest.FileID,
			MimeType: "image/jpeg",
		})
	}

	if doc := m.Document; doc != nil {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			Kind:     model.AttachmentDocument,
			FileID:   doc.FileID,
			MimeType: doc.MimeType,
		})
	}

	return msg
}

func isRemoval(update *tgbotapi.ChatMemberUpdated) bool {
	switch update.NewChatMember.Status {
	case "left", "kicked":
		return true
	default:
		return false
	}
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.UserName != "" {
		return chat.UserName
	}

	return chat.FirstName
}

func userName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	if user.LastName != "" {
		return user.FirstName + " " + user.LastName
	}

	return user.FirstName
}
