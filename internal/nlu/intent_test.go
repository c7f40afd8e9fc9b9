package nlu

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Kind
	}{
		{"Напомни мне позвонить маме", IntentCreate},
		{"напомнить купить хлеб", IntentCreate},
		{"создай напоминание на завтра", IntentCreate},
		{"установи напоминание", IntentCreate},
		{"не забыть бы про встречу", IntentCreate},
		{"нужно будет не забыть оплатить", IntentCreate},
		{"надо сходить в магазин", IntentCreate},
		// Creation verbs win over later groups.
		{"напомни удалить файлы", IntentCreate},
		{"Отмени напоминание", IntentCancel},
		{"удалить напоминание", IntentCancel},
		{"покажи мои напоминания", IntentList},
		{"список", IntentList},
		{"какие у меня есть напоминания", IntentList},
		{"в 18:30 встреча с другом", IntentCreate},
		{"встреча 9.15", IntentCreate},
		{"через 10 минут чай", IntentCreate},
		{"завтра сдать отчет", IntentCreate},
		{"вечером позвонить", IntentCreate},
		{"привет", IntentUnknown},
		{"   ", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := Classify(tc.in)
			if got.Kind != tc.want {
				t.Fatalf("Classify(%q)=%s want %s", tc.in, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyKeepsTrimmedText(t *testing.T) {
	t.Parallel()
	got := Classify("  Напомни Позвонить  ")
	if got.Text != "Напомни Позвонить" {
		t.Fatalf("Text=%q", got.Text)
	}
}
