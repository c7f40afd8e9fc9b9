package bot

import (
	"fmt"
	"strconv"
	"time"

	"remindbot/internal/storage"
	"remindbot/pkg/tgui"
)

const (
	layoutFull  = "02.01.2006 15:04:05"
	layoutShort = "02.01.2006 15:04"

	textPastTime   = "⚠️ Я не могу создать напоминание на прошедшее время."
	textNoTime     = "⏰ Не смог определить время. Пожалуйста, укажи время точнее!"
	textNotUnderst = "Не получилось разобрать запрос. Попробуй сформулировать по-другому."
	textEmptyList  = "У вас нет активных напоминаний."
	textInternal   = "Что-то пошло не так. Попробуй ещё раз чуть позже."
	textDeleted    = "Напоминание удалено!"
	textDeleteFail = "Ошибка при удалении напоминания."

	titleList = "Ваши активные напоминания:"
	titlePick = "Выберите напоминание для удаления:"
)

// Remaining renders d as "через H ч MM мин"; the hour term is omitted when
// zero and the minute term when the hours are exact.
func Remaining(d time.Duration) string {
	total := int(d / time.Minute)
	h, m := total/60, total%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("через %d ч %02d мин", h, m)
	case h > 0:
		return fmt.Sprintf("через %d ч", h)
	case m > 0:
		return fmt.Sprintf("через %d мин", m)
	default:
		return "меньше чем через минуту"
	}
}

func addExamples(b *tgui.Builder) *tgui.Builder {
	return b.HTML(tgui.B("Например:")).
		HTML(tgui.JoinH("", tgui.Raw("- "), tgui.I("Через 17 минут позвонить Любимой"))).
		HTML(tgui.JoinH("", tgui.Raw("- "), tgui.I("В 18:30 встреча с другом"))).
		HTML(tgui.JoinH("", tgui.Raw("- "), tgui.I("Завтра в 10:00 отправить отчет"))).
		Blank().
		Line("Также доступна команда:").
		HTML(tgui.JoinH(" - ", tgui.B("/list"), tgui.Esc("покажет активные напоминания")))
}

func renderGreeting(firstName string) tgui.Message {
	if firstName == "" {
		firstName = "друг"
	}
	b := tgui.New().
		HTML(tgui.JoinH("", tgui.Raw("👋 Привет, "), tgui.B(firstName+"!"))).
		Blank().
		Line("Отправь мне текстовое сообщение с тем, о чем тебе напомнить.").
		Blank()
	return addExamples(b).Build()
}

func renderUsage(lead string) tgui.Message {
	return addExamples(tgui.New().Line(lead).Blank()).Build()
}

func renderPlain(text string) tgui.Message {
	return tgui.New().Line(text).Build()
}

func renderCreated(r storage.Reminder, now time.Time) tgui.Message {
	return tgui.New().
		Line("✅ Напоминание создано!").
		Blank().
		HTML(tgui.JoinH("", tgui.Raw("📝 "), tgui.B(r.Text))).
		Line(fmt.Sprintf("⏰ %s (%s)", r.At.Format(layoutFull), Remaining(r.At.Sub(now)))).
		Build()
}

// renderList renders rows as a numbered list with one delete button per row.
func renderList(rows []storage.Reminder, now time.Time, pick bool) tgui.Message {
	if len(rows) == 0 {
		return renderPlain(textEmptyList)
	}
	b := tgui.New()
	if pick {
		b.Title("🗑", titlePick)
	} else {
		b.Title("📋", titleList)
	}
	kb := tgui.NewInline()
	for i, r := range rows {
		n := i + 1
		b.Blank().
			HTML(tgui.JoinH("", tgui.Raw(strconv.Itoa(n)+". "), tgui.B(r.Text))).
			Line(fmt.Sprintf("⏰ %s (%s)", r.At.Format(layoutShort), Remaining(r.At.Sub(now))))
		data, err := tgui.Data(cbScope, cbDelete, strconv.FormatInt(r.ID, 10))
		if err != nil {
			continue
		}
		kb.Row(tgui.Btn(fmt.Sprintf("❌ Удалить #%d", n), data))
	}
	return b.Inline(kb).Build()
}
