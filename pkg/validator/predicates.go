// pkg/validator/predicates.go
package validator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	emailPattern       = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneStripPattern  = regexp.MustCompile(`[^\p{Nd}+]`)
	phonePattern       = regexp.MustCompile(`^\+?[1-9]\p{Nd}{9,14}$`)
	cleanTextPattern   = regexp.MustCompile(`^[a-zA-Z0-9\s\v\p{Z}\x{1c}-\x{1f}\x{85}.,@_-]+$`)
	systemCodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[A-F0-9]{8}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{12}$`),
		regexp.MustCompile(`^[A-Z]{2,3}\p{Nd}{3,}$`),
		regexp.MustCompile(`^\p{Nd}{6,}$`),
		regexp.MustCompile(`^[A-Z0-9]{8,}$`),
	}
)

// DateLayouts are tried in order; the first that parses wins.
// Month, day, hour, minute and second accept one or two digits.
var DateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"2/1/2006",
	"2006-1-2 15:4:5",
	"1-2-2006",
	"2-1-2006",
	"2006/1/2",
	"2.1.2006",
	"2006",
	"1/2006",
	"2006-1",
}

// IsValidEmail reports whether v looks like local@domain.tld with a letter-only TLD
func IsValidEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// IsValidPhone strips everything but digits and '+', then requires 10 to 15
// characters in international form
func IsValidPhone(v string) bool {
	cleaned := phoneStripPattern.ReplaceAllString(v, "")
	if n := utf8.RuneCountInString(cleaned); n < 10 || n > 15 {
		return false
	}
	return phonePattern.MatchString(cleaned)
}

// IsValidDate reports whether v parses under any of DateLayouts
func IsValidDate(v string) bool {
	for _, layout := range DateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// ParseNumber parses a trimmed decimal value as a float. Out-of-range values
// count as numeric; hexadecimal literals do not. Single underscores between
// digits are accepted as separators.
func ParseNumber(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if strings.ContainsAny(v, "xX") {
		return 0, false
	}
	if strings.Contains(v, "_") {
		var ok bool
		if v, ok = stripDigitSeparators(v); !ok {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// stripDigitSeparators removes underscores that sit between two ASCII digits
func stripDigitSeparators(v string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] != '_' {
			b.WriteByte(v[i])
			continue
		}
		if i == 0 || i == len(v)-1 || !isDigit(v[i-1]) || !isDigit(v[i+1]) {
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsNumeric reports whether v parses as a floating-point number
func IsNumeric(v string) bool {
	_, ok := ParseNumber(v)
	return ok
}

// HasSpecialCharacters reports whether v contains anything other than ASCII
// letters and digits, Unicode whitespace and . , @ _ -
func HasSpecialCharacters(v string) bool {
	return !cleanTextPattern.MatchString(v)
}

// LooksLikeSystemCode matches the upper-cased value against common code shapes
func LooksLikeSystemCode(v string) bool {
	upper := strings.ToUpper(v)
	for _, p := range systemCodePatterns {
		if p.MatchString(upper) {
			return true
		}
	}
	return false
}

// InAllowList is a case-insensitive membership test
func InAllowList(v string, codes []string) bool {
	upper := strings.ToUpper(v)
	for _, code := range codes {
		if strings.ToUpper(code) == upper {
			return true
		}
	}
	return false
}

// HasNonASCII reports whether v contains a character outside 7-bit ASCII
func HasNonASCII(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}
