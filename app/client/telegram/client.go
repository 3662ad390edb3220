package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"tgbridge/app/config"
	"tgbridge/app/model"
	"tgbridge/app/util/textutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var allowedUpdates = []string{"message", "my_chat_member"}

type MessageHandler func(msg *model.Message)

// RemovedHandler is called when the bot is kicked from a chat or leaves it.
type RemovedHandler func(chatID string)

type Client struct {
	cfg *config.Config
	bot *tgbotapi.BotAPI

	mutex          sync.RWMutex
	messageHandler MessageHandler
	removedHandler RemovedHandler
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := tgbotapi.SetLogger(botLogger{}); err != nil {
		return nil, oops.In("telegram").Wrapf(err, "set logger")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, oops.In("telegram").Wrapf(err, "connect to bot api")
	}

	slog.Info("Authorized on Telegram", "username", bot.Self.UserName, "id", bot.Self.ID)

	return &Client{
		cfg: cfg,
		bot: bot,
	}, nil
}

// Identity describes the bot account the agent speaks through.
func (c *Client) Identity() model.Identity {
	userID := strconv.FormatInt(c.bot.Self.ID, 10)

	return model.Identity{
		UserID:  userID,
		AgentID: textutil.StableID(userID),
		Handle:  c.bot.Self.UserName,
		Name:    c.cfg.Agent.Name,
	}
}

func (c *Client) SetListener(onMessage MessageHandler, onRemoved RemovedHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.messageHandler = onMessage
	c.removedHandler = onRemoved
}

// Run long polls for updates until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.Telegram.PollTimeout
	u.AllowedUpdates = allowedUpdates

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	slog.Info("Polling Telegram updates")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			c.handleUpdate(update)
		}
	}
}

func (c *Client) handleUpdate(update tgbotapi.Update) {
	c.mutex.RLock()
	onMessage := c.messageHandler
	onRemoved := c.removedHandler
	c.mutex.RUnlock()

	if member := update.MyChatMember; member != nil {
		if isRemoval(member) && onRemoved != nil {
			onRemoved(strconv.FormatInt(member.Chat.ID, 10))
		}
		return
	}

	msg := convertMessage(update.Message)
	if msg == nil || onMessage == nil {
		return
	}

	onMessage(msg)
}

func (c *Client) Send(ctx context.Context, chatID, text, replyTo string) (string, error) {
	errorBuilder := oops.In("telegram").With("chat_id", chatID)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := parseChatID(chatID)
	if err != nil {
		return "", errorBuilder.Wrap(err)
	}

	msg := tgbotapi.NewMessage(id, text)
	if replyTo != "" {
		replyID, err := strconv.Atoi(replyTo)
		if err != nil {
			return "", errorBuilder.With("reply_to", replyTo).Wrapf(err, "invalid reply id")
		}
		msg.ReplyToMessageID = replyID
		msg.AllowSendingWithoutReply = true
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return "", errorBuilder.Wrapf(classify(err), "send message")
	}

	return strconv.Itoa(sent.MessageID), nil
}

func (c *Client) SendTyping(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	if _, err = c.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		return oops.In("telegram").With("chat_id", chatID).Wrapf(classify(err), "send typing")
	}

	return nil
}

func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", oops.In("telegram").With("file_id", fileID).Wrapf(err, "get file url")
	}

	return url, nil
}

func (c *Client) Leave(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	if _, err = c.bot.Request(tgbotapi.LeaveChatConfig{ChatID: id}); err != nil {
		return oops.In("telegram").With("chat_id", chatID).Wrapf(err, "leave chat")
	}

	return nil
}

// classify maps API refusals to model.ErrChatForbidden.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		return errors.Join(model.ErrChatForbidden, err)
	}

	return err
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, oops.With("chat_id", chatID).Wrapf(err, "invalid chat id")
	}

	return id, nil
}

type botLogger struct{}

func (botLogger) Println(v ...any) {
	slog.Debug("telegram-bot-api", "msg", v)
}

func (botLogger) Printf(format string, v ...any) {
	slog.Debug("telegram-bot-api", "format", format, "args", v)
}
