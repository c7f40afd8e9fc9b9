package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"remindbot/internal/nlu"
	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

type Controller struct {
	log    logx.Logger
	sender kit.Sender
	rem    Reminders
	now    func() time.Time

	mu  sync.RWMutex
	cfg Config

	throttle *throttle
	handler  HandlerFunc
}

func New(cfg Config, sender kit.Sender, rem Reminders, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	c := &Controller{
		log:      log,
		sender:   sender,
		rem:      rem,
		now:      time.Now,
		cfg:      cfg,
		throttle: newThrottle(cfg.Throttle),
	}
	c.handler = Chain(c.route,
		MWPanicRecover(log),
		MWRequestLog(log),
		MWThrottle(c.throttle.allow),
		MWTimeout(cfg.HandlerTimeout),
	)
	return c
}

// Apply updates the throttle interval. Workers and queue size need a restart.
func (c *Controller) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	c.mu.Lock()
	c.cfg.Throttle = cfg.Throttle
	c.mu.Unlock()
	c.throttle.set(cfg.Throttle)
}

func (c *Controller) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Handle processes one update synchronously.
func (c *Controller) Handle(ctx context.Context, up kit.Update) error {
	req := &Request{Update: up}
	switch {
	case up.Kind == kit.UpdateMessage && up.Message != nil:
		req.Chat = kit.ChatTarget{ChatID: up.Message.ChatID}
		req.FromID = up.Message.FromID
	case up.Kind == kit.UpdateCallback && up.Callback != nil:
		req.Chat = kit.ChatTarget{ChatID: up.Callback.ChatID}
		req.FromID = up.Callback.FromID
	default:
		return nil
	}
	req.Logger = c.log.With(logx.Int64("from_id", req.FromID))
	return c.handler(ctx, req)
}

func (c *Controller) route(ctx context.Context, req *Request) error {
	if cb := req.Update.Callback; cb != nil {
		return c.onCallback(ctx, req, cb)
	}
	msg := req.Update.Message
	text := strings.TrimSpace(msg.Text)

	if cmd, ok := commandOf(text); ok {
		req.Route = "/" + cmd
		switch cmd {
		case "start":
			return c.reply(ctx, req, renderGreeting(msg.FromFirstName))
		case "list":
			return c.showList(ctx, req, false)
		}
	}

	in := nlu.Classify(text)
	req.Route = in.Kind.String()
	switch in.Kind {
	case nlu.IntentCreate:
		return c.create(ctx, req, in.Text)
	case nlu.IntentList:
		return c.showList(ctx, req, false)
	case nlu.IntentCancel:
		return c.showList(ctx, req, true)
	default:
		return c.reply(ctx, req, renderUsage(textNotUnderst))
	}
}

// commandOf extracts "cmd" from "/cmd" or "/cmd@botname".
func commandOf(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	return word, word != ""
}

func (c *Controller) create(ctx context.Context, req *Request, text string) error {
	now := c.now()
	ex, ok := nlu.Extract(text, now)
	if !ok {
		return c.reply(ctx, req, renderUsage(textNoTime))
	}
	if !ex.At.After(now) {
		return c.reply(ctx, req, renderPlain(textPastTime))
	}
	r, err := c.rem.Create(ctx, req.FromID, ex.Text, ex.At)
	switch {
	case errors.Is(err, reminder.ErrPastTime):
		return c.reply(ctx, req, renderPlain(textPastTime))
	case err != nil:
		_ = c.reply(ctx, req, renderPlain(textInternal))
		return err
	}
	return c.reply(ctx, req, renderCreated(r, now))
}

func (c *Controller) showList(ctx context.Context, req *Request, pick bool) error {
	rows, err := c.rem.List(ctx, req.FromID)
	if err != nil {
		_ = c.reply(ctx, req, renderPlain(textInternal))
		return err
	}
	return c.reply(ctx, req, renderList(rows, c.now(), pick))
}

func (c *Controller) onCallback(ctx context.Context, req *Request, cb *kit.Callback) error {
	scope, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok || scope != cbScope || action != cbDelete {
		req.Route = "callback.unknown"
		return c.sender.AnswerCallback(ctx, cb.ID, "")
	}
	req.Route = "callback.delete"

	id, perr := strconv.ParseInt(payload, 10, 64)
	var err error
	if perr != nil {
		err = reminder.ErrNotFound
	} else {
		err = c.rem.Cancel(ctx, req.FromID, id)
	}
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			req.Logger.Warn("delete target not found", logx.String("payload", payload))
			err = nil
		}
		_ = c.sender.AnswerCallback(ctx, cb.ID, textDeleteFail)
		return err
	}
	if aerr := c.sender.AnswerCallback(ctx, cb.ID, textDeleted); aerr != nil {
		req.Logger.Debug("answer callback failed", logx.Err(aerr))
	}

	rows, err := c.rem.List(ctx, req.FromID)
	if err != nil {
		return err
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	return renderList(rows, c.now(), false).Edit(ctx, c.sender, ref)
}

func (c *Controller) reply(ctx context.Context, req *Request, m tgui.Message) error {
	_, err := m.Send(ctx, c.sender, req.Chat)
	return err
}

// PublishMenu sets the client command menu when the sender supports it.
func (c *Controller) PublishMenu(ctx context.Context) error {
	up, ok := c.sender.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	return up.UpdateMenuCommands(ctx, Commands)
}
