package utils

import (
	"errors"
	"regexp"
)

// MinutesPerDay bounds the minute-of-day clock used by requests.
const MinutesPerDay = 1440

var validIDPattern = regexp.MustCompile(`^[0-9]+$`)

// ValidateStopID validates a numeric stop identifier taken from a URL.
func ValidateStopID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > 19 {
		return errors.New("id too long")
	}
	if !validIDPattern.MatchString(id) {
		return errors.New("id must be numeric")
	}
	return nil
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateMinuteOfDay validates a minute-of-day value in [0, 1440].
func ValidateMinuteOfDay(minute int) error {
	if minute < 0 || minute > MinutesPerDay {
		return errors.New("time must be between 0 and 1440")
	}
	return nil
}

// ValidateLocationParams validates a coordinate pair and returns field errors keyed by the given names.
func ValidateLocationParams(lat, lon float64, latKey, lonKey string) map[string][]string {
	fieldErrors := make(map[string][]string)

	if err := ValidateLatitude(lat); err != nil {
		fieldErrors[latKey] = append(fieldErrors[latKey], err.Error())
	}
	if err := ValidateLongitude(lon); err != nil {
		fieldErrors[lonKey] = append(fieldErrors[lonKey], err.Error())
	}

	return fieldErrors
}

// ValidateTimeRange validates a [start, end) departure window.
func ValidateTimeRange(start, end int) map[string][]string {
	fieldErrors := make(map[string][]string)

	if err := ValidateMinuteOfDay(start); err != nil {
		fieldErrors["startTime"] = append(fieldErrors["startTime"], err.Error())
	}
	if err := ValidateMinuteOfDay(end); err != nil {
		fieldErrors["endTime"] = append(fieldErrors["endTime"], err.Error())
	}
	if len(fieldErrors) == 0 && end <= start {
		fieldErrors["endTime"] = append(fieldErrors["endTime"], "endTime must be after startTime")
	}

	return fieldErrors
}
