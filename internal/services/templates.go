package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// Routes offered in the route menu, in display order
var KnownRoutes = []string{
	"Kyiv-Malyn",
	"Malyn-Kyiv",
	"Kyiv-Malyn-Irpin",
	"Malyn-Kyiv-Irpin",
	"Kyiv-Malyn-Bucha",
	"Malyn-Kyiv-Bucha",
	"Malyn-Zhytomyr",
	"Zhytomyr-Malyn",
	"Korosten-Malyn",
	"Malyn-Korosten",
}

var routeNames = map[string]string{
	"Kyiv-Malyn":       "Київ → Малин",
	"Malyn-Kyiv":       "Малин → Київ",
	"Kyiv-Malyn-Irpin": "Київ → Малин (через Ірпінь)",
	"Malyn-Kyiv-Irpin": "Малин → Київ (через Ірпінь)",
	"Kyiv-Malyn-Bucha": "Київ → Малин (через Бучу)",
	"Malyn-Kyiv-Bucha": "Малин → Київ (через Бучу)",
	"Malyn-Zhytomyr":   "Малин → Житомир",
	"Zhytomyr-Malyn":   "Житомир → Малин",
	"Korosten-Malyn":   "Коростень → Малин",
	"Malyn-Korosten":   "Малин → Коростень",
}

// Departure times offered in the time menu
var TimePresets = []string{"06:00", "07:00", "08:00", "09:00", "12:00", "15:00", "17:00", "18:00", "19:00", "20:00"}

// MaxSeats is the largest seat count offered to drivers
const MaxSeats = 6

// RouteName returns the human label of a route key, or the key itself when unknown
func RouteName(route string) string {
	if name, ok := routeNames[route]; ok {
		return name
	}
	return route
}

// FormatDate renders a day as dd.mm.yyyy
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// DateKey renders a day as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func roleLabel(t models.ListingType) string {
	if t == models.ListingTypeDriver {
		return "🚗 Водій"
	}
	return "🙋 Пасажир"
}

// Menus

var cancelOption = Option{Token: tokenCancel, Label: "❌ Скасувати"}

const (
	tokenCancel        = "cancel"
	tokenFlowDriver    = "flow:driver"
	tokenFlowPassenger = "flow:passenger"
	tokenDateToday     = "date:today"
	tokenDateTomorrow  = "date:tomorrow"
	tokenDateCustom    = "date:custom"
	tokenTimeCustom    = "time:custom"
	tokenTimeSkip      = "time:skip"
	tokenNotesSkip     = "notes:skip"
)

func startMenu() *Menu {
	return NewMenu(Row(
		Option{Token: tokenFlowDriver, Label: "🚗 Я водій", Value: string(models.ListingTypeDriver)},
		Option{Token: tokenFlowPassenger, Label: "🙋 Я пасажир", Value: string(models.ListingTypePassenger)},
	))
}

func phoneMenu() *Menu {
	return NewMenu(
		Row(Option{Token: "phone:share", Label: "📱 Поділитися номером", RequestContact: true}),
		Row(cancelOption),
	)
}

func routeMenu() *Menu {
	m := NewMenu()
	for i := 0; i < len(KnownRoutes); i += 2 {
		var row []Option
		for _, route := range KnownRoutes[i:min(i+2, len(KnownRoutes))] {
			row = append(row, Option{Token: "route:" + route, Label: RouteName(route), Value: route})
		}
		m.Rows = append(m.Rows, row)
	}
	m.Rows = append(m.Rows, Row(cancelOption))
	return m
}

func dateMenu() *Menu {
	return NewMenu(
		Row(
			Option{Token: tokenDateToday, Label: "Сьогодні", Value: "0"},
			Option{Token: tokenDateTomorrow, Label: "Завтра", Value: "1"},
		),
		Row(Option{Token: tokenDateCustom, Label: "📅 Інша дата"}),
		Row(cancelOption),
	)
}

func timeMenu(variant models.ListingType) *Menu {
	m := NewMenu()
	for i := 0; i < len(TimePresets); i += 3 {
		var row []Option
		for _, t := range TimePresets[i:min(i+3, len(TimePresets))] {
			row = append(row, Option{Token: "time:" + t, Label: t, Value: t})
		}
		m.Rows = append(m.Rows, row)
	}
	extra := Row(Option{Token: tokenTimeCustom, Label: "🕐 Інший час"})
	if variant == models.ListingTypePassenger {
		extra = append(extra, Option{Token: tokenTimeSkip, Label: "⏭ Будь-який час"})
	}
	m.Rows = append(m.Rows, extra, Row(cancelOption))
	return m
}

func seatsMenu() *Menu {
	m := NewMenu(nil, nil)
	for n := 1; n <= MaxSeats; n++ {
		opt := Option{Token: "seats:" + strconv.Itoa(n), Label: strconv.Itoa(n), Value: strconv.Itoa(n)}
		m.Rows[(n-1)/3] = append(m.Rows[(n-1)/3], opt)
	}
	m.Rows = append(m.Rows, Row(cancelOption))
	return m
}

// removeKeyboard carries no options, it only hides the share-contact keyboard
func removeKeyboard() *Menu {
	return &Menu{RemoveKeyboard: true}
}

func notesMenu() *Menu {
	return NewMenu(
		Row(Option{Token: tokenNotesSkip, Label: "⏭ Без примітки"}),
		Row(cancelOption),
	)
}

// Messages

const msgWelcome = `👋 Привіт! Тут можна знайти попутку або пасажирів.

` + msgChooseRole

const (
	msgChooseRole      = "Оберіть, хто ви:"
	msgExpired         = "⌛ Сесія завершилася через неактивність."
	msgCancelled       = "❌ Створення оголошення скасовано."
	msgNothingToCancel = "Немає активного оголошення."
	msgFinalizeFailed  = "😔 Не вдалося зберегти оголошення. Спробуйте ще раз пізніше."
	msgIncomplete      = "⚠️ Не вистачає даних для оголошення. Почніть спочатку."
	msgUnsupported     = "Будь ласка, скористайтеся кнопками нижче."
)

func stepPrompt(variant models.ListingType, step Step) string {
	switch step {
	case StepPhone:
		return `📞 Надішліть свій номер телефону кнопкою нижче або введіть його вручну.

Наприклад: 0501234567`
	case StepRoute:
		return "🚐 Оберіть маршрут:"
	case StepDate:
		return "📅 Оберіть дату поїздки:"
	case StepDateCustom:
		return "📅 Введіть дату у форматі ДД.ММ (наприклад 15.02):"
	case StepTime:
		if variant == models.ListingTypePassenger {
			return "🕐 Оберіть бажаний час відправлення:"
		}
		return "🕐 Оберіть час відправлення:"
	case StepTimeCustom:
		return "🕐 Введіть час у форматі ГГ:ХХ (наприклад 18:30):"
	case StepSeats:
		return "💺 Скільки вільних місць?"
	case StepNotes:
		return "📝 Додайте примітку (місце зустрічі, багаж тощо) або пропустіть:"
	}
	return ""
}

// Validation reasons shown above the re-issued prompt
const (
	reasonPhone     = "❌ Не схоже на номер телефону."
	reasonDate      = "❌ Не вдалося розпізнати дату."
	reasonPastDate  = "❌ Ця дата вже минула."
	reasonTime      = "❌ Не вдалося розпізнати час."
	reasonChoice    = "❌ Оберіть один з варіантів."
	reasonNotesLong = "❌ Примітка задовга."
)

func listingDetails(b *strings.Builder, l *models.RideListing, withSeats bool) {
	fmt.Fprintf(b, "🚐 %s\n", RouteName(l.Route))
	fmt.Fprintf(b, "📅 %s", FormatDate(l.Date))
	if l.DepartureTime != nil {
		fmt.Fprintf(b, " о %s", *l.DepartureTime)
	}
	b.WriteString("\n")
	if withSeats && l.Seats != nil {
		fmt.Fprintf(b, "💺 Місць: %d\n", *l.Seats)
	}
	if l.SenderName != nil && *l.SenderName != "" {
		fmt.Fprintf(b, "👤 %s\n", *l.SenderName)
	}
	fmt.Fprintf(b, "📞 +%s\n", l.Phone)
	if l.Notes != nil && *l.Notes != "" {
		fmt.Fprintf(b, "📝 %s\n", *l.Notes)
	}
}

func phoneSavedMessage(phone string) string {
	return fmt.Sprintf("📞 Номер +%s збережено.", phone)
}

func listingCreatedMessage(l *models.RideListing) string {
	var b strings.Builder
	if l.ListingType == models.ListingTypeDriver {
		fmt.Fprintf(&b, "✅ Оголошення водія #%d створено!\n\n", l.ID)
	} else {
		fmt.Fprintf(&b, "✅ Запит пасажира #%d створено!\n\n", l.ID)
	}
	listingDetails(&b, l, l.ListingType == models.ListingTypeDriver)
	b.WriteString("\nМи повідомимо вас про збіги.")
	return b.String()
}

func tierHeading(tier MatchTier, count int) string {
	if tier == TierExact {
		return fmt.Sprintf("🎯 Точні збіги за часом (%d):", count)
	}
	return fmt.Sprintf("🔎 Інші оголошення на цю дату (%d):", count)
}

// originatorMatchesMessage lists one tier of candidates for the creator of a listing
func originatorMatchesMessage(tier MatchTier, candidates []*models.RideListing) string {
	var b strings.Builder
	b.WriteString(tierHeading(tier, len(candidates)))
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n\n%d) %s\n", i+1, roleLabel(c.ListingType))
		listingDetails(&b, c, c.ListingType == models.ListingTypeDriver)
	}
	return strings.TrimRight(b.String(), "\n")
}

// candidateMessage tells the owner of a matched listing about the new one
func candidateMessage(tier MatchTier, l *models.RideListing) string {
	var b strings.Builder
	if tier == TierExact {
		b.WriteString("🔔 Точний збіг!\n")
	} else {
		b.WriteString("🔔 Можливий збіг\n")
	}
	if l.ListingType == models.ListingTypeDriver {
		b.WriteString("Новий водій на вашому маршруті:\n\n")
	} else {
		b.WriteString("Новий пасажир на вашому маршруті:\n\n")
	}
	listingDetails(&b, l, l.ListingType == models.ListingTypeDriver)
	return strings.TrimRight(b.String(), "\n")
}
