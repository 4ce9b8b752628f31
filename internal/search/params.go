package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yoonhw/jibsa/internal/listing"
)

// DefaultStationDistance bounds station searches when the utterance gives
// no explicit radius (meters).
const DefaultStationDistance = 1000

// Params are the structured filters derived from one search utterance.
type Params struct {
	Gu          string  `json:"gu,omitempty"`
	Dong        string  `json:"dong,omitempty"`
	RentType    string  `json:"rent_type,omitempty"`
	MaxDeposit  int64   `json:"max_deposit,omitempty"`  // 만원
	MaxMonthly  int64   `json:"max_monthly,omitempty"`  // 만원
	Station     string  `json:"station_name,omitempty"` // includes the 역 suffix
	MaxDistance float64 `json:"max_distance,omitempty"` // meters
}

// HasLocation reports whether any location constraint was extracted.
func (p Params) HasLocation() bool {
	return p.Gu != "" || p.Dong != "" || p.Station != ""
}

// Filter projects the params onto a listing store filter. The station
// constraint is intentionally absent: it is applied as an exact post-filter
// after fusion.
func (p Params) Filter() listing.Filter {
	return listing.Filter{
		Gu:         p.Gu,
		Dong:       p.Dong,
		RentType:   p.RentType,
		MaxDeposit: p.MaxDeposit,
		MaxMonthly: p.MaxMonthly,
	}
}

// Merge overlays non-zero fields of other onto a copy of p. Used to carry
// conditions from a prior query into a location-only follow-up.
func (p Params) Merge(other Params) Params {
	if other.Gu != "" {
		p.Gu = other.Gu
	}
	if other.Dong != "" {
		p.Dong = other.Dong
	}
	if other.RentType != "" {
		p.RentType = other.RentType
	}
	if other.MaxDeposit > 0 {
		p.MaxDeposit = other.MaxDeposit
	}
	if other.MaxMonthly > 0 {
		p.MaxMonthly = other.MaxMonthly
	}
	if other.Station != "" {
		p.Station = other.Station
		p.MaxDistance = other.MaxDistance
	}
	return p
}

var (
	depositRe = regexp.MustCompile(`보증금\s*([\d,]+)\s*(억|천만|만)`)
	monthlyRe = regexp.MustCompile(`월세\s*([\d,]+)\s*만?`)
	guRe      = regexp.MustCompile(`([가-힣]+구)`)
	dongRe    = regexp.MustCompile(`([가-힣]+동)(?:\s|$|에|의|은|는)`)
	stationRe = regexp.MustCompile(`([가-힣]+역)`)
	radiusRe  = regexp.MustCompile(`(\d+)\s*(m|미터)\s*(이내|안)`)
)

// ParseParams is the deterministic rule pass over a search utterance. It is
// total: an utterance with no recognizable token yields zero-value Params.
func ParseParams(utterance string) Params {
	var p Params

	switch {
	case strings.Contains(utterance, listing.LeaseJeonse):
		p.RentType = listing.LeaseJeonse
	case strings.Contains(utterance, listing.LeaseWolse):
		p.RentType = listing.LeaseWolse
	case strings.Contains(utterance, listing.LeaseMaemae):
		p.RentType = listing.LeaseMaemae
	}

	if m := depositRe.FindStringSubmatch(utterance); m != nil {
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err == nil {
			switch m[2] {
			case "억":
				p.MaxDeposit = n * 10000
			case "천만":
				p.MaxDeposit = n * 1000
			case "만":
				p.MaxDeposit = n
			}
		}
	}
	if m := monthlyRe.FindStringSubmatch(utterance); m != nil {
		if n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			p.MaxMonthly = n
		}
	}

	if m := guRe.FindStringSubmatch(utterance); m != nil {
		p.Gu = m[1]
	}
	if m := dongRe.FindStringSubmatch(utterance); m != nil {
		p.Dong = m[1]
	}
	if m := stationRe.FindStringSubmatch(utterance); m != nil {
		p.Station = m[1]
		p.MaxDistance = DefaultStationDistance
		if rm := radiusRe.FindStringSubmatch(utterance); rm != nil {
			if n, err := strconv.Atoi(rm[1]); err == nil && n > 0 {
				p.MaxDistance = float64(n)
			}
		}
	}

	return p
}
