package datetime

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
)

const (
	// DateLayout is the display form accepted for event dates.
	DateLayout = "02/01/2006"
	// TimeLayout is the display form stored for event times.
	TimeLayout = "15:04"

	mergedLayout = "2006-01-02 15:04"
)

var (
	datePattern  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	twoDigits    = regexp.MustCompile(`^\d{2}$`)
	dateRewriter = "$3-$2-$1"
)

// Merge combines a DD/MM/YYYY date with two-digit hour and minute selections
// into a single instant in the local timezone. The date is rewritten to
// ISO order and parsed strictly, so impossible calendar dates (31/02) fail.
func Merge(dateText, hour, minute string) (time.Time, error) {
	if !datePattern.MatchString(dateText) {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateTime, fmt.Sprintf("data %q fora do formato DD/MM/YYYY", dateText))
	}
	if !twoDigits.MatchString(hour) || !twoDigits.MatchString(minute) {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateTime, "hora e minuto devem ter dois dígitos")
	}

	iso := datePattern.ReplaceAllString(dateText, dateRewriter)
	merged := fmt.Sprintf("%s %s:%s", iso, hour, minute)

	ts, err := time.ParseInLocation(mergedLayout, merged, time.Local)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidDateTime.Code, appErrors.ErrInvalidDateTime.Status, appErrors.ErrInvalidDateTime.Message)
	}
	return ts, nil
}

// EventTime recomputes the canonical timestamp from an event's persisted
// data and hora fields. hora must be in HH:MM form.
func EventTime(data, hora string) (time.Time, error) {
	parts := strings.SplitN(hora, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateTime, fmt.Sprintf("hora %q fora do formato HH:MM", hora))
	}
	return Merge(data, parts[0], parts[1])
}

// EventDate parses just the date component, used as the event list sort key.
func EventDate(data string) (time.Time, error) {
	if !datePattern.MatchString(data) {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateTime, fmt.Sprintf("data %q fora do formato DD/MM/YYYY", data))
	}
	ts, err := time.ParseInLocation(DateLayout, data, time.Local)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidDateTime.Code, appErrors.ErrInvalidDateTime.Status, appErrors.ErrInvalidDateTime.Message)
	}
	return ts, nil
}
