package adapter

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "dailyverse/internal/transport"
	logx "dailyverse/pkg/logx"
)

const (
	maxMenuCommands    = 100
	maxMenuDescription = 256
)

func markup(rows [][]kit.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	rm := &tele.ReplyMarkup{InlineKeyboard: make([][]tele.InlineButton, 0, len(rows))}
	for _, row := range rows {
		btns := make([]tele.InlineButton, len(row))
		for i, b := range row {
			btns[i] = tele.InlineButton{Text: b.Text, Data: b.Data}
		}
		rm.InlineKeyboard = append(rm.InlineKeyboard, btns)
	}
	return rm
}

func teleOptions(opt *kit.SendOptions, withKeyboard bool) *tele.SendOptions {
	so := &tele.SendOptions{ParseMode: tele.ParseMode(opt.ParseMode), DisableWebPagePreview: opt.DisablePreview}
	if withKeyboard {
		so.ReplyMarkup = markup(opt.Keyboard)
	}
	return so
}

// SendText sends text, split into several messages when it exceeds the
// Telegram limit. The keyboard is attached to the last part and the
// returned ref points at the first.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	parts := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, part := range parts {
		if err := a.limiter.Wait(ctx); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, part, teleOptions(opt, i == len(parts)-1))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// EditText replaces a message. Overflow beyond the first part is sent as
// new messages. A nil keyboard removes the existing one.
func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	parts := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(m, parts[0], teleOptions(opt, len(parts) == 1)); err != nil {
		return err
	}
	if len(parts) == 1 {
		return nil
	}
	_, err := a.SendText(ctx, kit.ChatTarget{ChatID: ref.ChatID}, strings.Join(parts[1:], "\n"), opt)
	return err
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// UpdateMenuCommands publishes the command menu (setMyCommands). Repeating
// the last published list is a no-op.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if a.menu != nil && slices.Equal(a.menu, cmds) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	menu := make([]tele.Command, 0, min(len(cmds), maxMenuCommands))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		desc := c.Description
		if desc == "" {
			desc = c.Command
		}
		if utf8.RuneCountInString(desc) > maxMenuDescription {
			desc = string([]rune(desc)[:maxMenuDescription])
		}
		menu = append(menu, tele.Command{Text: c.Command, Description: desc})
		if len(menu) == maxMenuCommands {
			break
		}
	}
	if err := a.bot.SetCommands(menu); err != nil {
		return err
	}
	a.menu = slices.Clone(cmds)
	a.log.Info("menu commands updated", logx.Int("count", len(menu)))
	return nil
}
