package delivery

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"dailyverse/internal/content"
)

// FormatHTML is Telegram's HTML parse mode.
const FormatHTML = "HTML"

// maxPassageRunes keeps a composed message within one Telegram message
// (4096 characters once entities are parsed) with room for the framing.
const maxPassageRunes = 3500

// Compose renders the daily message for a passage.
func Compose(p content.Passage, versionLabel string) Message {
	return render("📖 <b>Verse of the Day</b>", p, versionLabel, "")
}

// ComposeQuote renders an on-demand passage.
func ComposeQuote(p content.Passage, versionLabel string) Message {
	return render("✨ <b>A word for you</b>", p, versionLabel, "Use /setup to configure daily verses 🙏")
}

func render(title string, p content.Passage, versionLabel, footer string) Message {
	if strings.TrimSpace(versionLabel) == "" {
		versionLabel = p.VersionID
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "<i>%s</i>\n\n", html.EscapeString(clip(p.Text, maxPassageRunes)))
	fmt.Fprintf(&b, "— <b>%s</b> (<code>%s</code>)", html.EscapeString(p.Reference), html.EscapeString(versionLabel))
	if c := strings.TrimSpace(p.Copyright); c != "" && len(c) <= 200 {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(c))
	}
	if footer != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(footer))
	}
	return Message{Text: b.String(), Format: FormatHTML}
}

// clip shortens s to at most n runes plus an ellipsis, cutting at a space
// when one is near the end.
func clip(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	cut := n
	for i := n; i > n*3/4; i-- {
		if unicode.IsSpace(rs[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(rs[:cut]), unicode.IsSpace) + "…"
}
