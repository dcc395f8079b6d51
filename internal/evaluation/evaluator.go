package evaluation

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalize lowercases text and collapses whitespace so fact matching is
// layout-insensitive.
func normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(text), " "))
}

// FactCoverage reports, per expected fact, whether it appears in text.
func FactCoverage(text string, expectedFacts []string) map[string]bool {
	norm := normalize(text)
	out := make(map[string]bool, len(expectedFacts))
	for _, fact := range expectedFacts {
		out[fact] = strings.Contains(norm, normalize(fact))
	}
	return out
}

// RetrievalResult describes whether retrieval surfaced the expected
// documents.
type RetrievalResult struct {
	ExpectedDocs  []string `json:"expected_docs"`
	RetrievedDocs []string `json:"retrieved_docs"`
	MissingDocs   []string `json:"missing_docs"`
	Success       bool     `json:"success"`
}

// EvaluateRetrieval checks that every expected document id appears among the
// retrieved sources.
func EvaluateRetrieval(sources []models.Source, expectedDocIDs []string) RetrievalResult {
	retrieved := make(map[string]bool)
	var retrievedList []string
	for _, s := range sources {
		if !retrieved[s.DocID] {
			retrieved[s.DocID] = true
			retrievedList = append(retrievedList, s.DocID)
		}
	}
	missing := []string{}
	for _, d := range expectedDocIDs {
		if !retrieved[d] {
			missing = append(missing, d)
		}
	}
	return RetrievalResult{
		ExpectedDocs:  expectedDocIDs,
		RetrievedDocs: retrievedList,
		MissingDocs:   missing,
		Success:       len(missing) == 0,
	}
}

// AnswerResult describes how many expected facts made it into the answer and
// into the retrieved context.
type AnswerResult struct {
	AnswerFactHits     map[string]bool `json:"answer_fact_hits"`
	ChunkFactHits      map[string]bool `json:"chunk_fact_hits"`
	AnswerCompleteness float64         `json:"answer_completeness"`
	RetrievalCoverage  float64         `json:"retrieval_coverage"`
}

// EvaluateAnswer scores the answer and the retrieved chunks against the
// expected facts.
func EvaluateAnswer(answer string, sources []models.Source, expectedFacts []string) AnswerResult {
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	answerHits := FactCoverage(answer, expectedFacts)
	chunkHits := FactCoverage(strings.Join(texts, "\n"), expectedFacts)
	return AnswerResult{
		AnswerFactHits:     answerHits,
		ChunkFactHits:      chunkHits,
		AnswerCompleteness: hitRatio(answerHits, len(expectedFacts)),
		RetrievalCoverage:  hitRatio(chunkHits, len(expectedFacts)),
	}
}

func hitRatio(hits map[string]bool, total int) float64 {
	if total == 0 {
		total = 1
	}
	n := 0
	for _, hit := range hits {
		if hit {
			n++
		}
	}
	return float64(n) / float64(total)
}
