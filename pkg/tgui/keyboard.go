package tgui

import kit "dailyverse/internal/transport"

// Btn creates a callback button.
func Btn(text, data string) kit.Button {
	return kit.Button{Text: text, Data: data}
}

// Keyboard accumulates inline keyboard rows.
type Keyboard struct {
	rows [][]kit.Button
}

func NewKeyboard() *Keyboard { return &Keyboard{} }

// Row appends one row. Empty rows are ignored.
func (k *Keyboard) Row(btn ...kit.Button) *Keyboard {
	if len(btn) > 0 {
		k.rows = append(k.rows, btn)
	}
	return k
}

// Grid appends buttons split into rows of at most cols buttons.
func (k *Keyboard) Grid(cols int, btn ...kit.Button) *Keyboard {
	if cols <= 0 {
		cols = 1
	}
	for len(btn) > 0 {
		n := min(cols, len(btn))
		k.rows = append(k.rows, btn[:n:n])
		btn = btn[n:]
	}
	return k
}

func (k *Keyboard) Rows() [][]kit.Button {
	if k == nil {
		return nil
	}
	return k.rows
}
