package fetcher

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
)

// ParseTLEText walks a text body linearly looking for name/line1/line2
// trios. A line starting with "1 " of length >= 69 followed immediately by
// a line starting with "2 " that is also at least 69 long marks a record; the
// preceding non-TLE line, if any, is taken as the name. Unparseable trios
// are skipped silently rather than failing the whole feed.
func ParseTLEText(body string, fetchedAt time.Time) []model.ElementSet {
	lines := splitLines(body)
	var out []model.ElementSet
	var pendingName string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimRight(line, "\r")

		if isLine1(trimmed) && i+1 < len(lines) {
			next := strings.TrimRight(lines[i+1], "\r")
			if isLine2(next) {
				id, err := catalogIDFromLine1(trimmed)
				if err == nil {
					name := strings.TrimSpace(pendingName)
					if name == "" {
						name = "UNKNOWN"
					}
					out = append(out, model.ElementSet{
						CatalogID: id,
						Name:      name,
						Line1:     trimmed,
						Line2:     next,
						FetchedAt: fetchedAt,
					})
				}
				i++ // consume line2
				pendingName = ""
				continue
			}
		}

		if !isLine1(trimmed) && !isLine2(trimmed) && strings.TrimSpace(trimmed) != "" {
			pendingName = trimmed
		}
	}
	return out
}

func isLine1(s string) bool {
	return len(s) >= 69 && strings.HasPrefix(s, "1 ")
}

func isLine2(s string) bool {
	return len(s) >= 69 && strings.HasPrefix(s, "2 ")
}

func splitLines(body string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// EpochToTime decodes the TLE epoch in line1 columns 19..32 (1-indexed,
// "YYDDD.FFFFFFFF") into a UTC time.
func EpochToTime(line1 string) (time.Time, bool) {
	if len(line1) < 32 {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(line1[18:32])
	if len(raw) < 5 {
		return time.Time{}, false
	}
	dot := strings.IndexByte(raw, '.')
	var yyStr, dddStr, fracStr string
	if dot < 0 {
		if len(raw) < 5 {
			return time.Time{}, false
		}
		yyStr, dddStr, fracStr = raw[:2], raw[2:5], ""
	} else {
		intPart := raw[:dot]
		fracStr = raw[dot:]
		if len(intPart) < 5 {
			return time.Time{}, false
		}
		yyStr, dddStr = intPart[:2], intPart[2:5]
	}

	yy, err := strconv.Atoi(yyStr)
	if err != nil {
		return time.Time{}, false
	}
	ddd, err := strconv.Atoi(dddStr)
	if err != nil {
		return time.Time{}, false
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	frac := 0.0
	if fracStr != "" {
		frac, err = strconv.ParseFloat("0"+fracStr, 64)
		if err != nil {
			frac = 0
		}
	}
	dayFraction := frac * 24 * float64(time.Hour)
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, ddd-1)
	return base.Add(time.Duration(dayFraction)), true
}
