package booking

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	emailIntroRe = regexp.MustCompile(`^(?:my email(?: address)? is|it's|it is|es|mi correo es)\s+`)
	spokenAtRe   = regexp.MustCompile(`\s+(?:at|arroba)\s+`)
	spokenDotRe  = regexp.MustCompile(`\s+(?:dot|punto)\s+`)
	namePrefixRe = regexp.MustCompile(`^(?:my name is|my name's|i am|i'm|this is|it's|it is|me llamo|mi nombre es|soy)\s+`)
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	maxNameLength  = 100
)

// echoPhrases mark a value that repeats the question instead of answering it.
var echoPhrases = []string{
	"your name", "your email", "your phone", "your number",
	"what is", "what's", "could you", "can you", "can i get",
	"su nombre", "tu nombre", "su correo", "tu correo", "su telefono", "tu telefono", "cual es",
}

func looksLikeQuestion(v string) bool {
	if strings.ContainsAny(v, "?¿") {
		return true
	}
	low := foldAccents.Replace(strings.ToLower(v))
	for _, p := range echoPhrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// normalizeName trims a spoken introduction down to the name itself.
func normalizeName(v string) (string, bool) {
	name := strings.Join(strings.Fields(v), " ")
	if name == "" || looksLikeQuestion(name) {
		return "", false
	}
	if loc := namePrefixRe.FindStringIndex(strings.ToLower(name)); loc != nil {
		name = name[loc[1]:]
	}
	name = strings.Trim(name, " .,!;:")
	if name == "" || len(name) > maxNameLength {
		return "", false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return "", false
	}
	return name, true
}

// normalizeEmail accepts typed addresses and spoken ones such as
// "john at example dot com".
func normalizeEmail(v string) (string, bool) {
	raw := strings.TrimSpace(v)
	if raw == "" || looksLikeQuestion(raw) {
		return "", false
	}
	e := strings.ToLower(raw)
	e = emailIntroRe.ReplaceAllString(e, "")
	e = spokenAtRe.ReplaceAllString(e, "@")
	e = spokenDotRe.ReplaceAllString(e, ".")
	e = strings.Join(strings.Fields(e), "")
	e = strings.TrimRight(e, ".,;")
	if !emailRe.MatchString(e) {
		return "", false
	}
	return e, true
}

// normalizePhone keeps the digits and a leading plus sign.
func normalizePhone(v string) (string, bool) {
	raw := strings.TrimSpace(v)
	if raw == "" || looksLikeQuestion(raw) {
		return "", false
	}
	var b strings.Builder
	if strings.HasPrefix(raw, "+") {
		b.WriteByte('+')
	}
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", false
	}
	return b.String(), true
}
