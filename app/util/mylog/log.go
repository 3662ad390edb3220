package mylog

import (
	"context"
	"log/slog"
	"os"

	"tgbridge/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// AlertKey marks a record that must also reach the operator chat.
const AlertKey = "alert"

// Alert is the attribute forcing a record into the operator chat.
func Alert() slog.Attr {
	return slog.Bool(AlertKey, true)
}

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	level := ParseLevel(cfg.Log.Level)
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			operatorRecord,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

// operatorRecord routes errors and alert-tagged records to the operator chat.
func operatorRecord(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}

	alert := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == AlertKey {
			alert = attr.Value.Kind() == slog.KindBool && attr.Value.Bool()
			return false
		}

		return true
	})

	return alert
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
