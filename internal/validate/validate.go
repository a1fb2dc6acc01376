package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ     = regexp.MustCompile(`^[\p{L}\p{N} _'.,:&!?-]{1,100}$`)
	reISBN  = regexp.MustCompile(`^[A-Za-z0-9-]{1,20}$`)
	rePhone = regexp.MustCompile(`^\+?[0-9 ()-]{0,20}$`)
	reDate  = regexp.MustCompile(`^[0-9]{4}(-[0-9]{2}-[0-9]{2})?$`)
)

// MaxQty caps a single cart line.
const MaxQty = 999

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, reQ.MatchString(s)
}

func Qty(n int) bool { return n >= 1 && n <= MaxQty }

// ID parses a positive integer identifier from a path or query value.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil && n > 0
}

// Name validates a displayable name (category, person) with a max length in runes.
func Name(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > max {
		return "", false
	}
	return s, true
}

// Page clamps page/page_size query values.
func Page(pageStr, sizeStr string) (page, size int) {
	page, err := strconv.Atoi(strings.TrimSpace(pageStr))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(strings.TrimSpace(sizeStr))
	if err != nil || size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// Password requires 8-64 characters mixing lower, upper, digit and symbol.
func Password(s string) bool {
	l := utf8.RuneCountInString(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
