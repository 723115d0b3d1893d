package schedule

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownTimezone is returned when a timezone abbreviation is not in the
// alias table. It is a user error, mapped to a reply at the command boundary.
var ErrUnknownTimezone = errors.New("unknown timezone abbreviation")

// timezoneAliases maps common abbreviations to IANA zone names. Standard and
// daylight abbreviations map to the same zone; the actual offset is resolved
// per-date by the zone database.
var timezoneAliases = map[string]string{
	"PST": "America/Los_Angeles",
	"PDT": "America/Los_Angeles",
	"EST": "America/New_York",
	"EDT": "America/New_York",
	"CST": "America/Chicago",
	"CDT": "America/Chicago",
	"MST": "America/Denver",
	"MDT": "America/Denver",
	"UTC": "UTC",
	"GMT": "Etc/GMT",
}

// ResolveTimezone maps an abbreviation (case-insensitive) to its IANA zone
// name and location.
func ResolveTimezone(abbr string) (string, *time.Location, error) {
	name, ok := timezoneAliases[strings.ToUpper(abbr)]
	if !ok {
		return "", nil, ErrUnknownTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", nil, err
	}
	return name, loc, nil
}
