package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultText replaces a payload that is empty once the time expression is cut out.
const DefaultText = "Напоминание"

// maxOffset bounds relative expressions; "через 99999 дней" is not a reminder.
const maxOffset = 366 * 24 * time.Hour

// Extraction is a resolved target time plus the payload left after removing
// the time expression.
type Extraction struct {
	At   time.Time
	Text string
}

// interpreter resolves named groups into a timestamp. ok=false makes the
// extractor move on to the next rule.
type interpreter func(g groups, now time.Time) (time.Time, bool)

type timeRule struct {
	name   string
	re     *regexp.Regexp
	interp interpreter
}

// All patterns are case-insensitive and expose the removable span as "expr".
// Anchored forms come before bare clock forms so "завтра в 10:00" is read as tomorrow.
var timeRules = []timeRule{
	{
		name:   "relative",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>через\s+(?P<n>\d{1,6})\s+(?P<unit>мин\p{L}*|час\p{L}*|дн\p{L}*|день))`),
		interp: relative,
	},
	{
		name:   "tomorrow_clock",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>завтра\s+в\s+(?P<h>\d{1,2})[:.](?P<m>\d{2}))(?:$|\D)`),
		interp: onDay(1, false),
	},
	{
		name:   "tomorrow_hour",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>завтра\s+в\s+(?P<h>\d{1,2})\s*час\p{L}*(?:\s+(?P<m>\d{1,2})\s*мин\p{L}*)?)`),
		interp: onDay(1, false),
	},
	{
		name:   "today_clock",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>сегодня\s+в\s+(?P<h>\d{1,2})[:.](?P<m>\d{2}))(?:$|\D)`),
		interp: onDay(0, true),
	},
	{
		name:   "today_hour",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>сегодня\s+в\s+(?P<h>\d{1,2})\s*час\p{L}*(?:\s+(?P<m>\d{1,2})\s*мин\p{L}*)?)`),
		interp: onDay(0, true),
	},
	{
		name:   "clock",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>в\s+(?P<h>\d{1,2})[:.](?P<m>\d{2}))(?:$|\D)`),
		interp: onDay(0, true),
	},
	{
		name:   "hour",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>в\s+(?P<h>\d{1,2})\s*час\p{L}*(?:\s+(?P<m>\d{1,2})\s*мин\p{L}*)?)`),
		interp: onDay(0, true),
	},
	{
		name:   "single_unit",
		re:     regexp.MustCompile(`(?i)(?:^|\s)(?P<expr>через\s+(?P<unit>час|минуту|день))(?:$|\P{L})`),
		interp: relative,
	},
}

var (
	verbPrefix    = regexp.MustCompile(`(?i)^напомни(?:ть)?(?:[\s\p{P}]+мне)?(?:[\s\p{P}]+|$)`)
	leadingPunct  = regexp.MustCompile(`^[\s\p{P}]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Extract finds the first rule producing a valid time. It reports false when
// no rule applies; callers treat that as a parse failure.
func Extract(text string, now time.Time) (Extraction, bool) {
	for _, rule := range timeRules {
		loc := rule.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		g := newGroups(rule.re, text, loc)
		at, ok := rule.interp(g, now)
		if !ok {
			continue
		}
		start, end := g.span("expr")
		return Extraction{At: at, Text: cleanText(text[:start] + " " + text[end:])}, true
	}
	return Extraction{}, false
}

func cleanText(s string) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	s = leadingPunct.ReplaceAllString(s, "")
	s = verbPrefix.ReplaceAllString(s, "")
	s = strings.TrimSpace(leadingPunct.ReplaceAllString(s, ""))
	if s == "" {
		return DefaultText
	}
	return s
}

func relative(g groups, now time.Time) (time.Time, bool) {
	n := 1
	if raw := g.get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return time.Time{}, false
		}
		n = v
	}
	unit, ok := unitOf(g.get("unit"))
	if !ok {
		return time.Time{}, false
	}
	if time.Duration(n) > maxOffset/unit {
		return time.Time{}, false
	}
	return now.Add(time.Duration(n) * unit), true
}

func unitOf(word string) (time.Duration, bool) {
	w := strings.ToLower(word)
	switch {
	case strings.HasPrefix(w, "мин"):
		return time.Minute, true
	case strings.HasPrefix(w, "час"):
		return time.Hour, true
	case strings.HasPrefix(w, "дн"), w == "день":
		return 24 * time.Hour, true
	}
	return 0, false
}

// onDay builds a wall-clock time dayOffset days from now's date. With rollover
// a time that is not strictly after now moves one day forward.
func onDay(dayOffset int, rollover bool) interpreter {
	return func(g groups, now time.Time) (time.Time, bool) {
		h, ok := atoiRange(g.get("h"), 0, 23)
		if !ok {
			return time.Time{}, false
		}
		m := 0
		if raw := g.get("m"); raw != "" {
			if m, ok = atoiRange(raw, 0, 59); !ok {
				return time.Time{}, false
			}
		}
		y, mo, d := now.Date()
		at := time.Date(y, mo, d+dayOffset, h, m, 0, 0, now.Location())
		if rollover && !at.After(now) {
			at = time.Date(y, mo, d+dayOffset+1, h, m, 0, 0, now.Location())
		}
		return at, true
	}
}

func atoiRange(s string, lo, hi int) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

// groups gives named access to one submatch.
type groups struct {
	re   *regexp.Regexp
	text string
	loc  []int
}

func newGroups(re *regexp.Regexp, text string, loc []int) groups {
	return groups{re: re, text: text, loc: loc}
}

func (g groups) span(name string) (int, int) {
	i := g.re.SubexpIndex(name)
	if i < 0 || 2*i+1 >= len(g.loc) || g.loc[2*i] < 0 {
		return 0, 0
	}
	return g.loc[2*i], g.loc[2*i+1]
}

func (g groups) get(name string) string {
	start, end := g.span(name)
	if end <= start {
		return ""
	}
	return g.text[start:end]
}
