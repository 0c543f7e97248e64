package services

import (
	"strconv"
	"strings"
)

// Option is one selectable entry of a menu
type Option struct {
	Token string
	Label string
	Value string // payload the step stores when the option is chosen

	// RequestContact asks transports that support it to offer a share-contact button
	RequestContact bool
}

// Menu is a set of options laid out in rows
type Menu struct {
	Rows [][]Option

	// RemoveKeyboard asks transports to hide a previously shown reply keyboard
	RemoveKeyboard bool
}

// NewMenu builds a menu with the given rows
func NewMenu(rows ...[]Option) *Menu {
	return &Menu{Rows: rows}
}

// Row is a convenience for building menu rows
func Row(opts ...Option) []Option { return opts }

// Options returns every option in display order
func (m *Menu) Options() []Option {
	if m == nil {
		return nil
	}
	var out []Option
	for _, row := range m.Rows {
		out = append(out, row...)
	}
	return out
}

// Lookup finds the option with exactly this token
func (m *Menu) Lookup(token string) (Option, bool) {
	for _, opt := range m.Options() {
		if opt.Token == token {
			return opt, true
		}
	}
	return Option{}, false
}

// MatchLabel maps typed text onto an option by its label only
func (m *Menu) MatchLabel(text string) (Option, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Option{}, false
	}
	for _, opt := range m.Options() {
		if !opt.RequestContact && strings.EqualFold(opt.Label, text) {
			return opt, true
		}
	}
	return Option{}, false
}

// Match maps typed text onto an option. Labels and tokens match case-insensitively;
// when byIndex is set a 1-based option number is accepted too. Contact-request
// options are not selectable by text and are not counted.
func (m *Menu) Match(text string, byIndex bool) (Option, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Option{}, false
	}
	var selectable []Option
	for _, opt := range m.Options() {
		if !opt.RequestContact {
			selectable = append(selectable, opt)
		}
	}
	for _, opt := range selectable {
		if strings.EqualFold(opt.Label, text) || strings.EqualFold(opt.Token, text) {
			return opt, true
		}
	}
	if byIndex {
		if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(selectable) {
			return selectable[n-1], true
		}
	}
	return Option{}, false
}
