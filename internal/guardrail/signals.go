package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

const (
	// hallucinationThreshold marks an answer as hallucinated when its
	// similarity to the combined source text falls below it.
	hallucinationThreshold = 0.55
	// severeHallucinationThreshold is the hard-block cutoff used by the
	// decision chain and confidence aggregation.
	severeHallucinationThreshold = 0.25
	// citationThreshold is the minimum similarity for a sentence to be
	// attributed to a source document.
	citationThreshold = 0.45
	// unsafeThreshold marks the answer unsafe when any category reference
	// scores at or above it.
	unsafeThreshold = 0.65
)

// EvaluateAnswer computes the lexical-overlap signal: the number of answer
// tokens whose lowercase form appears as a substring anywhere in the
// concatenated source text.
func EvaluateAnswer(answer string, sources []models.Source) models.Evaluation {
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	combined := strings.ToLower(strings.Join(texts, "\n\n"))

	overlap := 0
	for _, word := range strings.Fields(answer) {
		if strings.Contains(combined, strings.ToLower(word)) {
			overlap++
		}
	}

	confidence := models.ConfidenceHigh
	if overlap < 3 {
		confidence = models.ConfidenceLow
	} else if overlap < 10 {
		confidence = models.ConfidenceMedium
	}
	return models.Evaluation{
		OverlapScore: overlap,
		SourceCount:  len(sources),
		Confidence:   confidence,
	}
}

// SemanticScore embeds the answer and each source chunk and aggregates the
// per-chunk cosine similarities.
func (e *Engine) SemanticScore(ctx context.Context, answer string, sources []models.Source) (models.Semantic, error) {
	if len(sources) == 0 {
		return models.Semantic{ChunkScores: []float64{}, Confidence: models.ConfidenceLow}, nil
	}
	answerEmb, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return models.Semantic{}, fmt.Errorf("embed answer: %w", err)
	}
	scores := make([]float64, len(sources))
	var sum float64
	maxScore, minScore := -1.0, 2.0
	for i, s := range sources {
		srcEmb, err := e.embedder.Embed(ctx, s.Text)
		if err != nil {
			return models.Semantic{}, fmt.Errorf("embed source %d: %w", i, err)
		}
		score := vector.CosineSimilarity(answerEmb, srcEmb)
		scores[i] = score
		sum += score
		if score > maxScore {
			maxScore = score
		}
		if score < minScore {
			minScore = score
		}
	}
	avg := sum / float64(len(scores))
	confidence := models.ConfidenceLow
	if avg > 0.75 {
		confidence = models.ConfidenceHigh
	} else if avg > 0.45 {
		confidence = models.ConfidenceMedium
	}
	return models.Semantic{
		ChunkScores: scores,
		Average:     avg,
		Max:         maxScore,
		Min:         minScore,
		Confidence:  confidence,
	}, nil
}

// DetectHallucination scores the answer against all sources concatenated.
// With no sources there is nothing the answer could be grounded in, so it is
// hallucinated by definition and scores 0 without an embedding call.
func (e *Engine) DetectHallucination(ctx context.Context, answer string, sources []models.Source) (models.Hallucination, error) {
	if len(sources) == 0 {
		return models.Hallucination{Score: 0, Hallucinated: true}, nil
	}
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	answerEmb, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return models.Hallucination{}, fmt.Errorf("embed answer: %w", err)
	}
	combinedEmb, err := e.embedder.Embed(ctx, strings.Join(texts, "\n\n"))
	if err != nil {
		return models.Hallucination{}, fmt.Errorf("embed sources: %w", err)
	}
	score := vector.CosineSimilarity(answerEmb, combinedEmb)
	return models.Hallucination{Score: score, Hallucinated: score < hallucinationThreshold}, nil
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)

// splitIntoSentences cuts text after sentence-final punctuation followed by
// whitespace. Best effort; abbreviations and decimals are accepted failure
// modes.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[start:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// AlignCitations maps each answer sentence to its best-matching source
// document, or nil when no source clears the similarity threshold. Sentence
// embeddings run with bounded concurrency; order is restored afterwards.
func (e *Engine) AlignCitations(ctx context.Context, answer string, sources []models.Source) ([]models.Citation, error) {
	sentences := splitIntoSentences(answer)
	citations := make([]models.Citation, len(sentences))
	if len(sentences) == 0 {
		return citations, nil
	}

	sourceEmbs := make([][]float32, len(sources))
	for i, s := range sources {
		emb, err := e.embedder.Embed(ctx, s.Text)
		if err != nil {
			return nil, fmt.Errorf("embed source %d: %w", i, err)
		}
		sourceEmbs[i] = emb
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	errs := make([]error, len(sentences))
	for i, sentence := range sentences {
		wg.Add(1)
		go func(i int, sentence string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			emb, err := e.embedder.Embed(ctx, sentence)
			if err != nil {
				errs[i] = fmt.Errorf("embed sentence %d: %w", i, err)
				return
			}
			best := -1.0
			bestDoc := ""
			for j, srcEmb := range sourceEmbs {
				if score := vector.CosineSimilarity(emb, srcEmb); score > best {
					best = score
					bestDoc = sources[j].DocID
				}
			}
			citation := models.Citation{Sentence: sentence, Score: best}
			if best >= citationThreshold {
				doc := bestDoc
				citation.SourceDocID = &doc
			}
			citations[i] = citation
		}(i, sentence)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	// No sources means every sentence is uncited with score 0.
	if len(sources) == 0 {
		for i := range citations {
			citations[i].Score = 0
		}
	}
	return citations, nil
}

// unsafeCategories are the fixed reference descriptions the answer is scored
// against. Order is stable so cached embeddings line up.
var unsafeCategories = []struct {
	name        string
	description string
}{
	{"hate", "hateful content attacking or demeaning a person or group based on identity"},
	{"toxicity", "toxic, harassing, or abusive language intended to insult or intimidate"},
	{"self-harm", "content encouraging or describing self-harm or suicide"},
	{"sexual", "sexually explicit or pornographic content"},
	{"violence", "graphic violence or threats of physical harm against people"},
	{"weapons", "instructions for building or obtaining weapons or explosives"},
}

func (e *Engine) safetyReferences(ctx context.Context) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.safetyRefs != nil {
		return e.safetyRefs, nil
	}
	refs := make([][]float32, len(unsafeCategories))
	for i, cat := range unsafeCategories {
		emb, err := e.embedder.Embed(ctx, cat.description)
		if err != nil {
			return nil, fmt.Errorf("embed category %q: %w", cat.name, err)
		}
		refs[i] = emb
	}
	e.safetyRefs = refs
	return refs, nil
}

// SafetyCheck scores the answer against each unsafe-category reference. The
// answer is safe when the best category score stays below the threshold; the
// highest-scoring category is always reported.
func (e *Engine) SafetyCheck(ctx context.Context, answer string) (models.Safety, error) {
	refs, err := e.safetyReferences(ctx)
	if err != nil {
		return models.Safety{}, err
	}
	answerEmb, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return models.Safety{}, fmt.Errorf("embed answer: %w", err)
	}
	best := -1.0
	bestCategory := ""
	for i, ref := range refs {
		if score := vector.CosineSimilarity(answerEmb, ref); score > best {
			best = score
			bestCategory = unsafeCategories[i].name
		}
	}
	return models.Safety{
		Safe:     best < unsafeThreshold,
		Category: bestCategory,
		Score:    best,
	}, nil
}
