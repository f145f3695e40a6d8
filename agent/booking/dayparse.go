package booking

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrDayUnparsed = errors.New("day phrase not understood")

var (
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{2}|\d{4}))?$`)
	ordinalRe     = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th|o|º|°)?$`)
	yearRe        = regexp.MustCompile(`^\d{4}$`)
	spacesRe      = regexp.MustCompile(`\s+`)
	wordHyphenRe  = regexp.MustCompile(`([a-z])-([a-z])`)
)

var foldAccents = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ñ", "n",
)

var relativeDays = map[string]int{
	"today":                  0,
	"hoy":                    0,
	"tonight":                0,
	"tomorrow":               1,
	"tommorow":               1,
	"tomorow":                1,
	"tommorrow":              1,
	"tomorroe":               1,
	"tmrw":                   1,
	"tmr":                    1,
	"2morrow":                1,
	"manana":                 1,
	"day after tomorrow":     2,
	"the day after tomorrow": 2,
	"pasado manana":          2,
}

var weekdayWords = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "miercoles": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday,
}

var monthWords = map[string]time.Month{
	"january": time.January, "jan": time.January, "enero": time.January, "ene": time.January,
	"february": time.February, "feb": time.February, "febrero": time.February,
	"march": time.March, "mar": time.March, "marzo": time.March,
	"april": time.April, "apr": time.April, "abril": time.April, "abr": time.April,
	"may": time.May, "mayo": time.May,
	"june": time.June, "jun": time.June, "junio": time.June,
	"july": time.July, "jul": time.July, "julio": time.July,
	"august": time.August, "aug": time.August, "agosto": time.August, "ago": time.August,
	"september": time.September, "sep": time.September, "sept": time.September, "septiembre": time.September, "setiembre": time.September,
	"october": time.October, "oct": time.October, "octubre": time.October,
	"november": time.November, "nov": time.November, "noviembre": time.November,
	"december": time.December, "dec": time.December, "diciembre": time.December, "dic": time.December,
}

// fillers carry no date information in either language.
var fillers = map[string]bool{
	"on": true, "the": true, "of": true, "for": true, "this": true, "coming": true,
	"el": true, "la": true, "de": true, "del": true, "para": true, "este": true, "proximo": true, "next": true,
}

var dayWords = buildDayWords()

func buildDayWords() map[string]int {
	words := map[string]int{}
	enUnits := []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
	enOrd := []string{"", "first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth"}
	enTeens := []string{"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
	enTeenOrd := []string{"tenth", "eleventh", "twelfth", "thirteenth", "fourteenth", "fifteenth", "sixteenth", "seventeenth", "eighteenth", "nineteenth"}
	for i := 1; i <= 9; i++ {
		words[enUnits[i]] = i
		words[enOrd[i]] = i
		words["twenty "+enUnits[i]] = 20 + i
		words["twenty "+enOrd[i]] = 20 + i
	}
	for i := 0; i < 10; i++ {
		words[enTeens[i]] = 10 + i
		words[enTeenOrd[i]] = 10 + i
	}
	words["twenty"], words["twentieth"] = 20, 20
	words["thirty"], words["thirtieth"] = 30, 30
	words["thirty one"], words["thirty first"] = 31, 31

	esUnits := []string{"", "uno", "dos", "tres", "cuatro", "cinco", "seis", "siete", "ocho", "nueve"}
	esTeens := []string{"diez", "once", "doce", "trece", "catorce", "quince", "dieciseis", "diecisiete", "dieciocho", "diecinueve"}
	for i := 1; i <= 9; i++ {
		words[esUnits[i]] = i
		words["veinti"+esUnits[i]] = 20 + i
		words["veinte y "+esUnits[i]] = 20 + i
	}
	for i := 0; i < 10; i++ {
		words[esTeens[i]] = 10 + i
	}
	words["un"], words["primero"], words["primer"] = 1, 1, 1
	words["veintiun"] = 21
	words["veinte"], words["treinta"], words["treinta y uno"] = 20, 30, 31
	return words
}

// ParseDay resolves a spoken or written day phrase to a calendar date in
// today's location. Dates that fall before today are moved forward and
// reported as adjusted. dayFirst picks the reading tried first for
// ambiguous numeric dates such as 3/4.
func ParseDay(text string, today time.Time, dayFirst bool) (day time.Time, adjusted bool, err error) {
	today = midnight(today)
	norm := normalizeDayText(text)
	if norm == "" {
		return time.Time{}, false, ErrDayUnparsed
	}

	tokens := strings.Fields(norm)
	if d, ok := relativeDays[norm]; ok {
		return today.AddDate(0, 0, d), false, nil
	}
	if d, ok := relativeDays[strings.Join(withoutFillers(tokens), " ")]; ok {
		return today.AddDate(0, 0, d), false, nil
	}
	if d, ok := parseWeekday(tokens, today); ok {
		return d, false, nil
	}

	var (
		parsed time.Time
		ok     bool
	)
	if len(tokens) == 1 {
		parsed, ok = parseNumericDate(tokens[0], today, dayFirst)
	}
	if !ok {
		parsed, ok = parseMonthPhrase(tokens, today)
	}
	if !ok {
		return time.Time{}, false, ErrDayUnparsed
	}

	coerced := CoerceFuture(parsed, today)
	return coerced, !coerced.Equal(parsed), nil
}

// CoerceFuture moves a past date forward: the same month and day this year
// when that is not past, otherwise the next year where the date exists.
func CoerceFuture(day, today time.Time) time.Time {
	today = midnight(today)
	day = midnight(day.In(today.Location()))
	if !day.Before(today) {
		return day
	}
	if d, ok := makeDate(today.Year(), day.Month(), day.Day(), today.Location()); ok && !d.Before(today) {
		return d
	}
	for y := today.Year() + 1; y <= today.Year()+8; y++ {
		if d, ok := makeDate(y, day.Month(), day.Day(), today.Location()); ok {
			return d
		}
	}
	return today
}

func normalizeDayText(text string) string {
	s := foldAccents.Replace(strings.ToLower(strings.TrimSpace(text)))
	s = wordHyphenRe.ReplaceAllString(s, "$1 $2")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '!', '?', '¿', '¡', ';':
			return ' '
		}
		return r
	}, s)
	s = strings.TrimRight(strings.TrimSpace(s), ".")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.TrimPrefix(s, "on ")
	s = strings.TrimPrefix(s, "para ")
	return strings.TrimSpace(s)
}

func parseWeekday(tokens []string, today time.Time) (time.Time, bool) {
	next := false
	var rest []string
	for _, t := range tokens {
		switch t {
		case "next", "proximo":
			next = true
		case "this", "el", "este", "coming", "on":
		default:
			rest = append(rest, t)
		}
	}
	if len(rest) != 1 {
		return time.Time{}, false
	}
	wd, ok := weekdayWords[rest[0]]
	if !ok {
		return time.Time{}, false
	}
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if next && ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead), true
}

func withoutFillers(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !fillers[t] || t == "the" {
			out = append(out, t)
		}
	}
	return out
}

// parseNumericDate reads ISO dates and slash, dash or dot separated
// day/month pairs with an optional year.
func parseNumericDate(token string, today time.Time, dayFirst bool) (time.Time, bool) {
	loc := today.Location()
	if m := isoDateRe.FindStringSubmatch(token); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return makeDate(y, time.Month(mo), d, loc)
	}

	m := numericDateRe.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year := today.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	// month, day
	orders := [2][2]int{{a, b}, {b, a}}
	if dayFirst {
		orders = [2][2]int{{b, a}, {a, b}}
	}
	for _, o := range orders {
		if day, ok := makeDate(year, time.Month(o[0]), o[1], loc); ok {
			return day, true
		}
	}
	return time.Time{}, false
}

func parseMonthPhrase(tokens []string, today time.Time) (time.Time, bool) {
	var (
		month    time.Month
		year     int
		dayParts []string
	)
	for _, t := range tokens {
		if m, ok := monthWords[t]; ok && month == 0 {
			month = m
			continue
		}
		if yearRe.MatchString(t) && year == 0 {
			year, _ = strconv.Atoi(t)
			continue
		}
		if _, isWeekday := weekdayWords[t]; isWeekday {
			continue
		}
		if fillers[t] {
			continue
		}
		dayParts = append(dayParts, t)
	}
	if month == 0 || len(dayParts) == 0 {
		return time.Time{}, false
	}

	d, ok := dayNumber(dayParts)
	if !ok {
		return time.Time{}, false
	}
	explicit := year != 0
	if !explicit {
		year = today.Year()
	}
	day, ok := makeDate(year, month, d, today.Location())
	if !ok && !explicit {
		// Feb 29 without a year resolves to the next leap year.
		for y := year + 1; y <= year+8 && !ok; y++ {
			day, ok = makeDate(y, month, d, today.Location())
		}
	}
	return day, ok
}

func dayNumber(parts []string) (int, bool) {
	if len(parts) == 1 {
		if m := ordinalRe.FindStringSubmatch(parts[0]); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n, n >= 1 && n <= 31
		}
	}
	n, ok := dayWords[strings.Join(parts, " ")]
	return n, ok
}

func makeDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
