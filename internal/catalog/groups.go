package catalog

import "strings"

// groupSubstrings maps a group tag to the case-insensitive name substrings
// that select membership in that group.
var groupSubstrings = map[string][]string{
	"starlink": {"starlink"},
	"gps":      {"gps", "navstar"},
	"galileo":  {"galileo"},
	"iss":      {"iss", "zarya"},
	"weather":  {"noaa", "goes", "metop"},
}

func matchesGroup(name, tag string) bool {
	subs, ok := groupSubstrings[strings.ToLower(tag)]
	if !ok {
		return false
	}
	upper := strings.ToLower(name)
	for _, s := range subs {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}
