package tgui

import (
	"context"
	"strings"

	kit "remindbot/internal/transport"
)

// Message is rendered text plus send options.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

func (m Message) Send(ctx context.Context, s kit.Sender, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return s.SendText(ctx, to, m.Text, m.Opt)
}

func (m Message) Edit(ctx context.Context, s kit.Sender, ref kit.MessageRef) error {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return s.EditText(ctx, ref, m.Text, m.Opt)
}

// Builder assembles a Message line by line. Defaults: ParseMode=HTML, no
// link previews.
type Builder struct {
	rm    *Inline
	lines []string
}

func New() *Builder { return &Builder{} }

func (b *Builder) Inline(kb *Inline) *Builder {
	b.rm = kb
	return b
}

// Title adds a bold line, optionally prefixed with an emoji.
func (b *Builder) Title(emoji, title string) *Builder {
	line := B(title).String()
	if emoji = strings.TrimSpace(emoji); emoji != "" {
		line = emoji + " " + line
	}
	b.lines = append(b.lines, line)
	return b
}

// Line adds an escaped line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// HTML adds a line that is already safe.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder {
	b.lines = append(b.lines, "")
	return b
}

func (b *Builder) Build() Message {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.rm != nil && b.rm.Len() > 0 {
		opt.ReplyMarkupAdapter = b.rm.Markup()
	}
	return Message{Text: strings.Trim(strings.Join(b.lines, "\n"), "\n"), Opt: opt}
}
