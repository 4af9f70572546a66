// Package tgui provides small chat UI helpers for Telegram HTML messages:
//   - escaping and inline formatting (H, Esc, B, I, Code)
//   - callback data in "scope:action:payload" form
//   - inline keyboards as transport buttons
//   - a message builder that carries its own send options
//   - a TTL keyed store for multi-step conversations
package tgui
