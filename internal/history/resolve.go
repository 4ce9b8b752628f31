package history

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yoonhw/jibsa/internal/listing"
)

var (
	locOrdinalRe = regexp.MustCompile(`([가-힣]+(?:동|역|구))((?:\s*\d+번)+)`)
	ordinalRe    = regexp.MustCompile(`(\d+)번`)
	locationRe   = regexp.MustCompile(`([가-힣]+(?:동|역|구))`)
)

// ExtractLocation returns the first district/sub-district/station token in
// the utterance, or "".
func ExtractLocation(utterance string) string {
	if m := locationRe.FindStringSubmatch(utterance); m != nil {
		return m[1]
	}
	return ""
}

// Resolve maps ordinal references in the utterance to listing records from
// past entries. Location-tagged ordinals ("서초구 1번") index into the most
// recent entry whose query mentions that location; bare ordinals index into
// the single most recent entry. Groups resolve independently and
// concatenate in textual order. Out-of-range ordinals are skipped, so
// callers must treat a short result as insufficient context.
func (s *Store) Resolve(utterance string) []listing.Record {
	groups := locOrdinalRe.FindAllStringSubmatch(utterance, -1)
	if len(groups) > 0 {
		var out []listing.Record
		for _, g := range groups {
			entry, ok := s.latestMatching(g[1])
			if !ok {
				continue
			}
			for _, ord := range parseOrdinals(g[2]) {
				if ord >= 1 && ord <= len(entry.Records) {
					out = append(out, entry.Records[ord-1])
				}
			}
		}
		return out
	}

	ords := parseOrdinals(utterance)
	if len(ords) == 0 {
		return nil
	}
	latest, ok := s.Latest()
	if !ok {
		return nil
	}
	var out []listing.Record
	for _, ord := range ords {
		if ord >= 1 && ord <= len(latest.Records) {
			out = append(out, latest.Records[ord-1])
		}
	}
	return out
}

// latestMatching walks entries newest-first for a query mentioning the
// location token.
func (s *Store) latestMatching(location string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if strings.Contains(s.entries[i].Query, location) {
			return s.entries[i], true
		}
	}
	return Entry{}, false
}

func parseOrdinals(s string) []int {
	var out []int
	for _, m := range ordinalRe.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, n)
		}
	}
	return out
}
