// Package common — pluralize.go содержит вспомогательные функции
// для правильного склонения русских числительных.
package common

import "fmt"

// pluralize выбирает одну из трёх форм слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeAnswers возвращает форму слова «ответ» для числа n.
//
//	PluralizeAnswers(1)  → "ответ"
//	PluralizeAnswers(3)  → "ответа"
//	PluralizeAnswers(11) → "ответов"
func PluralizeAnswers(n int) string {
	return pluralize(int64(n), "ответ", "ответа", "ответов")
}

// FormatPoints создаёт строку вида "+1.5 очков" или "-2 очков".
// Для дробных значений всегда используется родительный падеж множественного числа.
func FormatPoints(amount float64) string {
	word := "очков"
	if amount == float64(int64(amount)) {
		word = pluralize(int64(amount), "очко", "очка", "очков")
	}
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatScore(amount), word)
	}
	return fmt.Sprintf("%s %s", FormatScore(amount), word)
}
