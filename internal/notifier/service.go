package notifier

import (
	"context"
	"sync"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"

	"golang.org/x/time/rate"
)

const historyMax = 300

// Service is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	log    logx.Logger
	sender kit.Sender
	now    func() time.Time

	dmu   sync.Mutex
	dedup map[string]time.Time // job id -> suppress until

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, now: time.Now, dedup: map[string]time.Time{}}
	s.Apply(cfg)
	return s
}

// Apply swaps pacing and dedup settings; in-flight waits keep the old limiter.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter != nil && s.cfg.RatePerSec == cfg.RatePerSec {
		s.cfg = cfg
		return
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Render formats the push body (ParseMode=HTML).
func Render(text string) tgui.Message {
	return tgui.New().Title("🔔", "Напоминание!").Blank().Line(text).Build()
}

// Send delivers p once. It waits for the rate limiter, bounded by ctx.
// ErrAlreadyNotified means the job id was delivered recently.
func (s *Service) Send(ctx context.Context, p Push) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if s.sender == nil {
		return ErrNoSender
	}
	if p.JobID != "" && s.seen(p.JobID) {
		s.log.Debug("push suppressed (already delivered)", logx.String("job_id", p.JobID))
		return ErrAlreadyNotified
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	if _, err := Render(p.Text).Send(callCtx, s.sender, kit.ChatTarget{ChatID: p.OwnerID}); err != nil {
		return err
	}

	if p.JobID != "" {
		s.remember(p.JobID, cfg)
	}
	s.appendHistory(HistoryItem{At: s.now(), OwnerID: p.OwnerID, JobID: p.JobID})
	return nil
}

func (s *Service) seen(jobID string) bool {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	until, ok := s.dedup[jobID]
	return ok && s.now().Before(until)
}

func (s *Service) remember(jobID string, cfg Config) {
	now := s.now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.dedup[jobID] = now.Add(cfg.DedupWindow)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	// Cap: drop the entries closest to expiry.
	for len(s.dedup) > cfg.DedupMaxEntries {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, it)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
}

// History returns recent successful deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
