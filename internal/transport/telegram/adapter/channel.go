package adapter

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"dailyverse/internal/delivery"
	kit "dailyverse/internal/transport"
)

// Send delivers msg to the private chat recipientID as exactly one Telegram
// message, never split, so a failed send has delivered nothing. It implements
// delivery.Channel; every error is a *delivery.Error.
func (a *Adapter) Send(ctx context.Context, recipientID string, msg delivery.Message) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return &delivery.Error{Kind: delivery.Unreachable, Err: err}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return classify(err)
	}
	opt := &kit.SendOptions{ParseMode: msg.Format, DisablePreview: true}
	if _, err := a.bot.Send(&tele.Chat{ID: chatID}, msg.Text, teleOptions(opt, false)); err != nil {
		return classify(err)
	}
	return nil
}

// SendOperatorText posts a plain-text log line to the operator chat.
func (a *Adapter) SendOperatorText(ctx context.Context, chatID int64, text string) error {
	_, err := a.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true})
	return err
}
