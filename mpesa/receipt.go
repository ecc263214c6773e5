package mpesa

import (
	"regexp"
	"strings"
)

// receiptPattern — формат квитанции M-Pesa: три заглавные буквы и минимум
// шесть цифр. Формат фиксирован внешним шлюзом.
var receiptPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{6,}$`)

// ValidReceipt проверяет формат кода квитанции. Регистр значим: шлюз выдаёт
// только заглавные буквы, поэтому нормализация здесь не выполняется.
func ValidReceipt(code string) bool {
	return receiptPattern.MatchString(code)
}

// FormatPhone нормализует телефон к формату 254XXXXXXXXX: отбрасывает всё,
// кроме цифр, и заменяет локальный префикс 0 на код страны.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return "254" + cleaned[1:]
	case !strings.HasPrefix(cleaned, "254"):
		return "254" + cleaned
	default:
		return cleaned
	}
}

// WholeAmount округляет сумму в минимальных единицах до целых шиллингов:
// шлюз принимает только целые значения.
func WholeAmount(amountMinor int64) int64 {
	return (amountMinor + 50) / 100
}
