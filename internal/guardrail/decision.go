package guardrail

import (
	"github.com/hyperjump/kotae/internal/models"
)

const (
	// refusalText replaces the answer when the guardrail blocks it.
	refusalText = "I'm unable to share this answer because it did not pass the content and evidence checks."
	// warningBanner is prepended to the answer when it is allowed with a
	// warning.
	warningBanner = "Note: this answer may not be fully supported by the indexed documents.\n\n"
)

// signalSet is everything the rule chain looks at.
type signalSet struct {
	evaluation    models.Evaluation
	hallucination models.Hallucination
	semantic      models.Semantic
	safety        models.Safety
	citations     []models.Citation
}

type verdict int

const (
	verdictBlock verdict = iota
	verdictWarn
	verdictAllow
)

// rule is one predicate/outcome pair. Rules run in order and the first match
// wins; this encodes the severity hierarchy (safety over evidence over
// hallucination over soft confidence signals) and must not be reordered.
type rule struct {
	match   func(s signalSet) bool
	reason  func(s signalSet) string
	verdict verdict
}

var decisionRules = []rule{
	{
		match:   func(s signalSet) bool { return !s.safety.Safe },
		reason:  func(s signalSet) string { return "unsafe_content:" + s.safety.Category },
		verdict: verdictBlock,
	},
	{
		match:   func(s signalSet) bool { return s.evaluation.OverlapScore == 0 },
		reason:  func(s signalSet) string { return "no_evidence_in_context" },
		verdict: verdictBlock,
	},
	{
		match:   func(s signalSet) bool { return s.hallucination.Score < severeHallucinationThreshold },
		reason:  func(s signalSet) string { return "severe_hallucination" },
		verdict: verdictBlock,
	},
	{
		match:   func(s signalSet) bool { return s.hallucination.Hallucinated },
		reason:  func(s signalSet) string { return "possible_hallucination" },
		verdict: verdictWarn,
	},
	{
		match:   func(s signalSet) bool { return s.semantic.Confidence == models.ConfidenceLow },
		reason:  func(s signalSet) string { return "low_semantic_confidence" },
		verdict: verdictWarn,
	},
	{
		match:   func(s signalSet) bool { return s.evaluation.Confidence == models.ConfidenceLow },
		reason:  func(s signalSet) string { return "low_keyword_overlap" },
		verdict: verdictWarn,
	},
	{
		match:   func(s signalSet) bool { return countUnsupported(s.citations) > 1 },
		reason:  func(s signalSet) string { return "weak_citations" },
		verdict: verdictWarn,
	},
}

func countUnsupported(citations []models.Citation) int {
	n := 0
	for _, c := range citations {
		if c.SourceDocID == nil {
			n++
		}
	}
	return n
}

// Decide runs the ordered rule chain over the computed signals and returns
// the final verdict. A block replaces the answer with the refusal text, a
// warning prefixes the answer with the banner, and a clean allow passes the
// answer through verbatim with a nil reason.
func Decide(answer string, evaluation models.Evaluation, hallucination models.Hallucination, semantic models.Semantic, safety models.Safety, citations []models.Citation) models.Decision {
	s := signalSet{
		evaluation:    evaluation,
		hallucination: hallucination,
		semantic:      semantic,
		safety:        safety,
		citations:     citations,
	}
	for _, r := range decisionRules {
		if !r.match(s) {
			continue
		}
		reason := r.reason(s)
		switch r.verdict {
		case verdictBlock:
			return models.Decision{Allowed: false, Reason: &reason, FinalAnswer: refusalText}
		case verdictWarn:
			return models.Decision{Allowed: true, Reason: &reason, FinalAnswer: warningBanner + answer}
		}
	}
	return models.Decision{Allowed: true, Reason: nil, FinalAnswer: answer}
}

// ComputeConfidence aggregates all signals into an informational 0-100 score.
// Unsafe answers and severe hallucinations short-circuit; everything else
// deducts from a perfect score.
func ComputeConfidence(evaluation models.Evaluation, semantic models.Semantic, hallucination models.Hallucination, citations []models.Citation, safety models.Safety) models.Confidence {
	if !safety.Safe {
		return models.Confidence{Score: 0, Level: "blocked"}
	}
	if hallucination.Score < severeHallucinationThreshold {
		return models.Confidence{Score: 15, Level: "very_low"}
	}

	score := 100
	switch semantic.Confidence {
	case models.ConfidenceLow:
		score -= 25
	case models.ConfidenceMedium:
		score -= 10
	}
	switch evaluation.Confidence {
	case models.ConfidenceLow:
		score -= 20
	case models.ConfidenceMedium:
		score -= 10
	}
	if countUnsupported(citations) > 1 {
		score -= 15
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := models.ConfidenceLow
	if score >= 80 {
		level = models.ConfidenceHigh
	} else if score >= 55 {
		level = models.ConfidenceMedium
	}
	return models.Confidence{Score: score, Level: level}
}
