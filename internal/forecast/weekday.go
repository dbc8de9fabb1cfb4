package forecast

import (
	"time"

	"golang.org/x/text/language"
)

// weekdayNames holds abbreviated day names indexed by time.Weekday.
type weekdayNames [7]string

var (
	supportedLanguages = []language.Tag{
		language.English,
		language.Portuguese,
		language.Spanish,
		language.French,
		language.German,
	}
	languageMatcher = language.NewMatcher(supportedLanguages)

	weekdayTables = []weekdayNames{
		{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"},
		{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
		{"dim", "lun", "mar", "mer", "jeu", "ven", "sam"},
		{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
	}
)

func weekdaysFor(lang language.Tag) weekdayNames {
	_, idx, conf := languageMatcher.Match(lang)
	if conf == language.No {
		return weekdayTables[0]
	}
	return weekdayTables[idx]
}

// forDate returns the abbreviated weekday of a YYYY-MM-DD date, or "" if the date
// does not parse.
func (w weekdayNames) forDate(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return w[t.Weekday()]
}
