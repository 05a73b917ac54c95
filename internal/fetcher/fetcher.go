// Package fetcher pulls TLE bundles from upstream feeds and parses them into
// element sets.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
)

// Group names recognized by Fetch, mirroring celestrak.org's GP groups.
var knownGroups = map[string]bool{
	"active": true, "visual": true, "weather": true, "science": true,
	"resource": true, "starlink": true, "stations": true, "gps-ops": true,
	"glonass-ops": true, "galileo": true, "beidou": true, "geo": true,
	"intelsat": true, "iridium": true, "globalstar": true, "ses": true,
}

const feedURLTemplate = "https://celestrak.org/NORAD/elements/gp.php?GROUP=%s&FORMAT=tle"

// Doer is satisfied by *http.Client; tests substitute a fake.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Fetcher struct {
	client Doer
	log    *slog.Logger
	urlFor func(group string) string
}

func New(client Doer, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client: client,
		log:    log,
		urlFor: func(group string) string { return fmt.Sprintf(feedURLTemplate, group) },
	}
}

// Fetch pulls and parses the TLE bundle for a single group. A non-2xx
// response or a transport error is treated as an empty result with a
// warning, never as a fatal error — the caller decides whether an empty
// result across all groups should fail a refresh.
func (f *Fetcher) Fetch(ctx context.Context, group string) ([]model.ElementSet, error) {
	url := f.urlFor(group)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: build request for group %q: %w", group, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("tle feed unreachable", "group", group, "err", err)
		observability.ObserveFetcherHTTP(group, "error")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.log.Warn("tle feed returned non-2xx", "group", group, "status", resp.StatusCode)
		observability.ObserveFetcherHTTP(group, statusClass(resp.StatusCode))
		return nil, nil
	}
	observability.ObserveFetcherHTTP(group, statusClass(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.Warn("tle feed read failed", "group", group, "err", err)
		return nil, nil
	}

	sets := ParseTLEText(string(body), time.Now().UTC())
	f.log.Info("tle feed fetched", "group", group, "objects", len(sets))
	return sets, nil
}

// FetchGroups fetches multiple groups, concatenates in feed order, then
// dedupes by catalog_id keeping the first occurrence seen (P1).
func (f *Fetcher) FetchGroups(ctx context.Context, groups []string) ([]model.ElementSet, error) {
	var all []model.ElementSet
	anySucceeded := false
	for _, g := range groups {
		sets, err := f.Fetch(ctx, g)
		if err != nil {
			return nil, err
		}
		if len(sets) > 0 {
			anySucceeded = true
		}
		all = append(all, sets...)
	}
	deduped := Dedup(all)
	if !anySucceeded {
		return deduped, fmt.Errorf("fetcher: all groups returned empty results")
	}
	return deduped, nil
}

// Dedup sorts by catalog_id and keeps the first occurrence, matching the
// order the set was first seen in the concatenated feed order.
func Dedup(sets []model.ElementSet) []model.ElementSet {
	seen := make(map[uint64]bool, len(sets))
	order := make([]model.ElementSet, 0, len(sets))
	for _, s := range sets {
		if seen[s.CatalogID] {
			continue
		}
		seen[s.CatalogID] = true
		order = append(order, s)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].CatalogID < order[j].CatalogID })
	return order
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// IsKnownGroup reports whether group is one of the enumerated feed groups.
func IsKnownGroup(group string) bool {
	return knownGroups[strings.ToLower(group)]
}

// catalogIDFromLine1 extracts the NORAD catalog number from columns 3..7
// (1-indexed) of a TLE line 1, e.g. "1 25544U 98067A   ..." -> 25544.
func catalogIDFromLine1(line1 string) (uint64, error) {
	if len(line1) < 7 {
		return 0, fmt.Errorf("line1 too short")
	}
	raw := strings.TrimSpace(line1[2:7])
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse catalog id %q: %w", raw, err)
	}
	return id, nil
}
