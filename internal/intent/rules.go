package intent

import (
	"regexp"
	"strings"

	"github.com/yoonhw/jibsa/internal/task"
)

// Keyword vocabularies for the deterministic rule pass. Order matters:
// earlier capabilities win when multiple vocabularies match and no compound
// pattern applies.
var ruleVocab = []struct {
	capability task.Capability
	keywords   []string
}{
	{task.CapComparison, []string{"비교", "차이", "뭐가 나아", "어떤 게 나은"}},
	{task.CapSimilarity, []string{"비슷한", "유사한", "같은 조건"}},
	{task.CapSavedList, []string{"관심", "찜", "위시리스트", "저장해", "목록에"}},
	{task.CapRecommendation, []string{"추천"}},
	{task.CapAnalysis, []string{"분석", "어때", "평가", "괜찮"}},
	{task.CapRetrieval, []string{"찾아", "검색", "매물", "아파트", "원룸", "오피스텔", "전세", "월세", "보증금"}},
}

// Compound phrasings produce multi-task graphs even without the model.
// Checked before single-capability vocabularies.
var compoundRules = []struct {
	pattern *regexp.Regexp
	chain   []task.Capability
}{
	{regexp.MustCompile(`(찾|검색).*비교`), []task.Capability{task.CapRetrieval, task.CapComparison}},
	{regexp.MustCompile(`(찾|검색).*분석`), []task.Capability{task.CapRetrieval, task.CapAnalysis}},
	{regexp.MustCompile(`비교.*분석`), []task.Capability{task.CapComparison, task.CapAnalysis}},
	{regexp.MustCompile(`(찾|검색).*추천`), []task.Capability{task.CapRetrieval, task.CapRecommendation}},
}

// Location-only utterances ("강남구", "서초동은?") carry no intent keyword;
// they continue the previous search with a new location.
var locationOnlyRe = regexp.MustCompile(`^([가-힣]+(?:구|동|역))(야|는|은|이야|으로|로)?\??$`)

// Ordinal-bearing utterances reference prior results.
var ordinalRe = regexp.MustCompile(`\d+번`)

// LocationOnly returns the location token when the utterance is nothing
// but a location, optionally with a topic particle.
func LocationOnly(utterance string) (string, bool) {
	m := locationOnlyRe.FindStringSubmatch(strings.TrimSpace(utterance))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// classifyByRules is the deterministic fallback classifier. It is total:
// any utterance yields at least a conversational classification.
func classifyByRules(utterance string) Classification {
	for _, cr := range compoundRules {
		if cr.pattern.MatchString(utterance) {
			return Classification{
				Primary:         cr.chain[0],
				Secondary:       cr.chain[1:],
				Confidence:      0.6,
				Complex:         true,
				RequiresContext: hasContextCue(utterance),
			}
		}
	}
	for _, v := range ruleVocab {
		for _, kw := range v.keywords {
			if strings.Contains(utterance, kw) {
				return Classification{
					Primary:         v.capability,
					Confidence:      0.5,
					RequiresContext: requiresContext(v.capability, utterance),
				}
			}
		}
	}
	if _, ok := LocationOnly(utterance); ok {
		return Classification{Primary: task.CapRetrieval, Confidence: 0.5, RequiresContext: true}
	}
	return Classification{Primary: task.CapConversational, Confidence: 0.3}
}

// hasContextCue reports whether the utterance references prior results.
func hasContextCue(utterance string) bool {
	return ordinalRe.MatchString(utterance) ||
		strings.Contains(utterance, "아까") ||
		strings.Contains(utterance, "그 매물") ||
		strings.Contains(utterance, "방금")
}

func requiresContext(c task.Capability, utterance string) bool {
	switch c {
	case task.CapComparison, task.CapSimilarity, task.CapAnalysis:
		return true
	default:
		return hasContextCue(utterance)
	}
}
