package nlu

import (
	"regexp"
	"strings"
)

type Kind int

const (
	IntentUnknown Kind = iota
	IntentCreate
	IntentList
	IntentCancel
)

func (k Kind) String() string {
	switch k {
	case IntentCreate:
		return "create"
	case IntentList:
		return "list"
	case IntentCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Intent is the classification of one message. Text is the trimmed input.
type Intent struct {
	Kind Kind
	Text string
}

type intentRule struct {
	kind     Kind
	patterns []*regexp.Regexp
}

// Evaluated in order; the first group with a matching pattern wins.
var intentRules = []intentRule{
	{
		kind: IntentCreate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^напомни(ть)?(\s+мне)?`),
			regexp.MustCompile(`^создай(\s+мне)?(\s+напоминание)?`),
			regexp.MustCompile(`^установи(\s+мне)?(\s+напоминание)?`),
			regexp.MustCompile(`не\s+забыть(\s+бы)?`),
			regexp.MustCompile(`нужно(\s+будет)?(\s+не)?(\s+забыть)?`),
			regexp.MustCompile(`надо(\s+будет)?(\s+не)?(\s+забыть)?`),
		},
	},
	{
		kind: IntentCancel,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^отмени(ть)?(\s+напоминание)?`),
			regexp.MustCompile(`^удали(ть)?(\s+напоминание)?`),
		},
	},
	{
		kind: IntentList,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^(покажи|посмотреть|выведи|список)(\s+мои|\s+все)?(\s+напоминания)?`),
			regexp.MustCompile(`^какие(\s+у\s+меня)?(\s+есть)?(\s+напоминания)?`),
		},
	},
}

// timeIndicators mark a message as a reminder request when no verb matched.
var (
	timeIndicators = []string{
		"через", "завтра", "сегодня", "час", "минут",
		"утром", "вечером", "днем", "днём", "ночью",
	}
	clockFragment = regexp.MustCompile(`\d{1,2}[:.]\d{2}`)
)

// Classify never fails; unmatched text yields IntentUnknown.
func Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	in := Intent{Kind: IntentUnknown, Text: trimmed}
	if lower == "" {
		return in
	}

	for _, rule := range intentRules {
		for _, re := range rule.patterns {
			if re.MatchString(lower) {
				in.Kind = rule.kind
				return in
			}
		}
	}

	if hasTimeIndicator(lower) {
		in.Kind = IntentCreate
	}
	return in
}

func hasTimeIndicator(lower string) bool {
	for _, w := range timeIndicators {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return clockFragment.MatchString(lower)
}
