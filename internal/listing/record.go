package listing

import (
	"fmt"
	"strings"
)

// Lease types as they appear in user utterances and stored records.
const (
	LeaseJeonse = "전세" // deposit only, no monthly rent
	LeaseWolse  = "월세" // deposit plus monthly rent
	LeaseMaemae = "매매" // outright sale, kept for vocabulary matching
)

// Record is the normalized projection of one real-estate unit.
// Records are immutable after creation; rank and score are assigned on
// copies by the retrieval pipeline, never in place on stored records.
type Record struct {
	ID                string  `json:"id" yaml:"id"`
	Gu                string  `json:"gu" yaml:"gu"`
	Dong              string  `json:"dong" yaml:"dong"`
	Jibun             string  `json:"jibun,omitempty" yaml:"jibun,omitempty"`
	AptName           string  `json:"apt_name" yaml:"apt_name"`
	Floor             int     `json:"floor" yaml:"floor"`
	AreaPyeong        float64 `json:"area_pyeong" yaml:"area_pyeong"`
	Deposit           int64   `json:"deposit" yaml:"deposit"`           // 만원
	MonthlyRent       int64   `json:"monthly_rent" yaml:"monthly_rent"` // 만원
	RentType          string  `json:"rent_type" yaml:"rent_type"`
	NearestStation    string  `json:"nearest_station,omitempty" yaml:"nearest_station,omitempty"`
	DistanceToStation float64 `json:"distance_to_station,omitempty" yaml:"distance_to_station,omitempty"` // meters
	Lat               float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng               float64 `json:"lng,omitempty" yaml:"lng,omitempty"`
	Rank              int     `json:"rank,omitempty" yaml:"-"`
	Score             float64 `json:"score,omitempty" yaml:"-"`
}

// WithRank returns a copy of the record carrying a 1-based rank position.
func (r Record) WithRank(rank int) Record {
	r.Rank = rank
	return r
}

// WithScore returns a copy of the record carrying a relevance score.
func (r Record) WithScore(score float64) Record {
	r.Score = score
	return r
}

// EffectiveRentType returns the record's lease type, inferring it from the
// monthly rent amount when the stored value is empty.
func (r Record) EffectiveRentType() string {
	if r.RentType != "" {
		return r.RentType
	}
	if r.MonthlyRent == 0 {
		return LeaseJeonse
	}
	return LeaseWolse
}

// EmbedText composes the text used to embed a record for vector search.
func (r Record) EmbedText() string {
	return fmt.Sprintf("%s %s %.0f평 %s", r.Dong, r.AptName, r.AreaPyeong, r.EffectiveRentType())
}

// Label renders a short human-readable line for the record.
func (r Record) Label() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", r.Gu, r.Dong, r.AptName)
	fmt.Fprintf(&b, " %d층 %.1f평 ", r.Floor, r.AreaPyeong)
	if r.EffectiveRentType() == LeaseJeonse {
		fmt.Fprintf(&b, "전세 %s", FormatPrice(r.Deposit))
	} else {
		fmt.Fprintf(&b, "월세 %s/%s", FormatPrice(r.Deposit), FormatPrice(r.MonthlyRent))
	}
	if r.NearestStation != "" {
		fmt.Fprintf(&b, " (%s %.0fm)", r.NearestStation, r.DistanceToStation)
	}
	return b.String()
}

// FormatPrice renders an amount in 만원 using the 억/만원 convention.
func FormatPrice(manwon int64) string {
	if manwon >= 10000 {
		eok := manwon / 10000
		rest := manwon % 10000
		if rest == 0 {
			return fmt.Sprintf("%d억", eok)
		}
		return fmt.Sprintf("%d억 %d만원", eok, rest)
	}
	return fmt.Sprintf("%d만원", manwon)
}

// PricePerPyeong returns the deposit divided by area, guarding zero area.
func PricePerPyeong(r Record) float64 {
	if r.AreaPyeong <= 0 {
		return 0
	}
	return float64(r.Deposit) / r.AreaPyeong
}

// Average computes a synthetic mean record over a non-empty set, used as a
// comparison baseline. Returns false when the set is empty.
func Average(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	var avg Record
	avg.AptName = "평균"
	var area, dist float64
	var deposit, rent int64
	for _, r := range records {
		deposit += r.Deposit
		rent += r.MonthlyRent
		area += r.AreaPyeong
		dist += r.DistanceToStation
	}
	n := int64(len(records))
	avg.Deposit = deposit / n
	avg.MonthlyRent = rent / n
	avg.AreaPyeong = area / float64(len(records))
	avg.DistanceToStation = dist / float64(len(records))
	return avg, true
}

// StationClass buckets a record by walking distance to its nearest station.
func StationClass(distance float64) string {
	switch {
	case distance <= 0:
		return "비역세권"
	case distance <= 250:
		return "역세권"
	case distance <= 500:
		return "준역세권"
	default:
		return "비역세권"
	}
}
