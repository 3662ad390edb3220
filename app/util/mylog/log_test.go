package mylog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperatorRecord(t *testing.T) {
	ctx := context.Background()

	errRecord := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	assert.True(t, operatorRecord(ctx, errRecord))

	infoRecord := slog.NewRecord(time.Now(), slog.LevelInfo, "replied", 0)
	assert.False(t, operatorRecord(ctx, infoRecord))

	alertRecord := slog.NewRecord(time.Now(), slog.LevelInfo, "left chat", 0)
	alertRecord.AddAttrs(slog.String("chat_id", "-100"), Alert())
	assert.True(t, operatorRecord(ctx, alertRecord))

	falseAlert := slog.NewRecord(time.Now(), slog.LevelInfo, "noise", 0)
	falseAlert.AddAttrs(slog.Bool(AlertKey, false))
	assert.False(t, operatorRecord(ctx, falseAlert))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelDebug, ParseLevel(""))
}
