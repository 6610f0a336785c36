// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: разбор строк времени, форматирование очков, русская плюрализация.
package common

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// timeStringRe — компоненты часов, минут и секунд строго в этом порядке.
var timeStringRe = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseTimeString переводит строку вида "1h30m" в секунды.
//
// Каждый компонент необязателен, но порядок фиксирован: часы, минуты, секунды.
// Пустая строка или строка без единого компонента — ошибка.
//
// Примеры:
//
//	ParseTimeString("1h30m") → 5400
//	ParseTimeString("45s")   → 45
//	ParseTimeString("2h")    → 7200
//	ParseTimeString("")      → ErrInvalidTimeString
func ParseTimeString(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalidTimeString
	}

	m := timeStringRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeString, s)
	}

	multipliers := [3]int{3600, 60, 1}
	total := 0
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeString, s)
		}
		total += n * multipliers[i]
	}
	return total, nil
}

// FormatSeconds обратна ParseTimeString: 5400 → "1h30m", 0 → "0s".
func FormatSeconds(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	var sb strings.Builder
	if h := seconds / 3600; h > 0 {
		fmt.Fprintf(&sb, "%dh", h)
	}
	if m := seconds % 3600 / 60; m > 0 {
		fmt.Fprintf(&sb, "%dm", m)
	}
	if s := seconds % 60; s > 0 {
		fmt.Fprintf(&sb, "%ds", s)
	}
	return sb.String()
}

// ParseAmount разбирает число очков из аргумента команды.
// Допускает отрицательные значения и запятую вместо точки.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatScore форматирует очки без лишних нулей: 1.50 → "1.5", 3.00 → "3".
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
