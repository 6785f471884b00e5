// Package validation содержит функции валидации входных данных.
package validation

import (
	"html"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DateLayout задаёт формат дат, принимаемый API.
const DateLayout = "2006-01-02"

// MinPasswordLength задаёт минимальную длину пароля.
const MinPasswordLength = 6

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var textPolicy = bluemonday.StrictPolicy()

// Field связывает имя поля с его значением для проверки обязательности.
type Field struct {
	Name  string
	Value string
}

// MissingFields возвращает имена полей, пустых после обрезки пробелов.
func MissingFields(fields ...Field) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// IsValidEmail проверяет формат адреса электронной почты.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// IsValidCedula проверяет, что номер документа состоит из цифр, букв и дефисов.
func IsValidCedula(cedula string) bool {
	if cedula == "" {
		return false
	}
	for _, r := range cedula {
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}

// ParseDate разбирает дату в формате ГГГГ-ММ-ДД.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// ToCents переводит денежную сумму в сентаво с округлением до ближайшего.
// Второй результат ложен для NaN, бесконечности и сумм, не помещающихся в int64.
func ToCents(amount float64) (int64, bool) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	cents := math.Round(amount * 100)
	if cents > math.MaxInt64/2 || cents < math.MinInt64/2 {
		return 0, false
	}
	return int64(cents), true
}

// FromCents переводит сентаво в денежную сумму.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// CleanText удаляет разметку и обрезает пробелы в свободном тексте.
// Экранирование bluemonday снимается: текст уходит в JSON, а не в HTML.
func CleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

// OptionalText возвращает nil для пустой строки после очистки.
func OptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	v := CleanText(*value)
	if v == "" {
		return nil
	}
	return &v
}
