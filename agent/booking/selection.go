package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
)

var (
	optionNumberRe = regexp.MustCompile(`^(?:option|opcion|number|numero|no\.?|#)?\s*[_#]?\s*(\d{1,2})$`)
	spokenTimeRe   = regexp.MustCompile(`(\d{1,2})(?:[:.h](\d{2}))?\s*(am|pm)?`)
	meridiemRe     = regexp.MustCompile(`\b([ap])\.?\s?m\.?`)
)

var optionWords = map[string]int{
	"first": 1, "one": 1, "1st": 1, "primera": 1, "primero": 1, "uno": 1, "una": 1,
	"second": 2, "two": 2, "2nd": 2, "segunda": 2, "segundo": 2, "dos": 2,
	"third": 3, "three": 3, "3rd": 3, "tercera": 3, "tercero": 3, "tres": 3,
	"fourth": 4, "four": 4, "4th": 4, "cuarta": 4, "cuarto": 4, "cuatro": 4,
	"fifth": 5, "five": 5, "5th": 5, "quinta": 5, "quinto": 5, "cinco": 5,
	"sixth": 6, "six": 6, "6th": 6, "sexta": 6, "sexto": 6, "seis": 6,
	"seventh": 7, "seven": 7, "7th": 7, "septima": 7, "septimo": 7, "siete": 7,
	"eighth": 8, "eight": 8, "8th": 8, "octava": 8, "octavo": 8, "ocho": 8,
	"ninth": 9, "nine": 9, "9th": 9, "novena": 9, "noveno": 9, "nueve": 9,
	"tenth": 10, "ten": 10, "10th": 10, "decima": 10, "decimo": 10, "diez": 10,
	"last": -1, "ultima": -1, "ultimo": -1,
}

var optionFillers = map[string]bool{
	"the": true, "option": true, "opcion": true, "number": true, "numero": true,
	"la": true, "el": true, "one": true, "please": true, "por": true, "favor": true,
	"i'll": true, "take": true, "want": true, "quiero": true,
}

// resolveOption maps a caller's choice onto one of the offered slots. It
// tries the alias labels, option numbers, ordinal words, a bare slot id and
// finally a spoken time that must match exactly one candidate. A bare number
// is always read as an option number.
func resolveOption(options []calendar.AvailableSlot, aliases map[string]calendar.AvailableSlot, text string, loc *time.Location) (calendar.AvailableSlot, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" || len(options) == 0 {
		return calendar.AvailableSlot{}, false
	}
	if slot, ok := aliases[raw]; ok {
		return slot, true
	}

	norm := foldAccents.Replace(strings.ToLower(raw))
	norm = strings.TrimRight(norm, ".!?")
	if slot, ok := aliases[norm]; ok {
		return slot, true
	}

	byIndex := func(n int) (calendar.AvailableSlot, bool) {
		if n == -1 {
			n = len(options)
		}
		if n < 1 || n > len(options) {
			return calendar.AvailableSlot{}, false
		}
		return options[n-1], true
	}

	// An option number or ordinal that names no offered slot is a miss; it
	// must not fall through to the spoken-time match.
	if m := optionNumberRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		return byIndex(n)
	}
	if n, ok := optionWord(norm); ok {
		return byIndex(n)
	}

	for _, word := range strings.Fields(norm) {
		for _, o := range options {
			if word == strings.ToLower(o.ID()) {
				return o, true
			}
		}
	}

	return matchSpokenTime(options, norm, loc)
}

func optionWord(norm string) (int, bool) {
	var words []string
	for _, w := range strings.Fields(norm) {
		if !optionFillers[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 && norm == "one" {
		return 1, true
	}
	if len(words) != 1 {
		return 0, false
	}
	n, ok := optionWords[words[0]]
	return n, ok
}

func matchSpokenTime(options []calendar.AvailableSlot, norm string, loc *time.Location) (calendar.AvailableSlot, bool) {
	norm = meridiemRe.ReplaceAllString(norm, "${1}m")
	m := spokenTimeRe.FindStringSubmatch(norm)
	if m == nil {
		return calendar.AvailableSlot{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return calendar.AvailableSlot{}, false
	}

	hours := []int{hour}
	switch m[3] {
	case "am":
		if hour == 12 {
			hours = []int{0}
		}
	case "pm":
		if hour < 12 {
			hours = []int{hour + 12}
		}
	default:
		if hour < 12 {
			hours = append(hours, hour+12)
		}
	}

	var found []calendar.AvailableSlot
	for _, o := range options {
		local := o.Start().In(loc)
		if local.Minute() != minute {
			continue
		}
		for _, h := range hours {
			if local.Hour() == h {
				found = append(found, o)
				break
			}
		}
	}
	if len(found) != 1 {
		return calendar.AvailableSlot{}, false
	}
	return found[0], true
}
