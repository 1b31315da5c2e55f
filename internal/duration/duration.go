// Package duration parses the human interval grammar shared by savings locks
// and scheduled payments: named intervals ("weekly") and numeric forms
// ("10 minutes", "2 hrs").
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalid indicates the text does not match the interval grammar.
var ErrInvalid = errors.New("invalid duration")

// Interval is a parsed duration with a canonical human label.
type Interval struct {
	Seconds int64
	Label   string
}

var named = map[string]Interval{
	"daily":      {Seconds: 86400, Label: "1 day"},
	"day":        {Seconds: 86400, Label: "1 day"},
	"weekly":     {Seconds: 604800, Label: "1 week"},
	"week":       {Seconds: 604800, Label: "1 week"},
	"monthly":    {Seconds: 2592000, Label: "30 days"},
	"month":      {Seconds: 2592000, Label: "30 days"},
	"yearly":     {Seconds: 31536000, Label: "365 days"},
	"year":       {Seconds: 31536000, Label: "365 days"},
}

var numericPattern = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

type unit struct {
	pattern *regexp.Regexp
	seconds int64
	name    string
}

var units = []unit{
	{regexp.MustCompile(`^s(ec|ecs|econd|econds)?$`), 1, "second"},
	{regexp.MustCompile(`^m(in|ins|inute|inutes)?$`), 60, "minute"},
	{regexp.MustCompile(`^h(r|rs|our|ours)?$`), 3600, "hour"},
	{regexp.MustCompile(`^d(ay|ays)?$`), 86400, "day"},
	{regexp.MustCompile(`^w(k|ks|eek|eeks)?$`), 604800, "week"},
}

// Parse interprets text like "weekly", "every 5 minutes" or "2 days". The
// optional "every " prefix is stripped so schedule intervals and lock
// durations share one grammar.
func Parse(text string) (Interval, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimPrefix(t, "every ")
	if t == "" {
		return Interval{}, ErrInvalid
	}

	if iv, ok := named[t]; ok {
		return iv, nil
	}

	m := numericPattern.FindStringSubmatch(t)
	if m == nil {
		return Interval{}, ErrInvalid
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || value <= 0 {
		return Interval{}, ErrInvalid
	}

	for _, u := range units {
		if u.pattern.MatchString(m[2]) {
			label := fmt.Sprintf("%d %s", value, u.name)
			if value > 1 {
				label += "s"
			}
			return Interval{Seconds: value * u.seconds, Label: label}, nil
		}
	}
	return Interval{}, ErrInvalid
}

// Format renders a second count in the largest sensible unit, for user-facing
// countdowns ("2 hours remaining").
func Format(seconds int64) string {
	value, name := seconds, "second"
	switch {
	case seconds >= 86400:
		value, name = seconds/86400, "day"
	case seconds >= 3600:
		value, name = seconds/3600, "hour"
	case seconds >= 60:
		value, name = seconds/60, "minute"
	}
	if value == 1 {
		return "1 " + name
	}
	return fmt.Sprintf("%d %ss", value, name)
}
