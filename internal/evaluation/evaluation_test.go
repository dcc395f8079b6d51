package evaluation

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestFactCoverage(t *testing.T) {
	hits := FactCoverage("Refunds arrive within   5 Business Days of approval.", []string{"5 business days", "30 days"})
	if !hits["5 business days"] {
		t.Error("normalized fact should match")
	}
	if hits["30 days"] {
		t.Error("absent fact should not match")
	}
}

func TestEvaluateRetrieval(t *testing.T) {
	sources := []models.Source{
		{DocID: "return_policy", Text: "a"},
		{DocID: "return_policy", Text: "b"},
		{DocID: "shipping_policy", Text: "c"},
	}
	got := EvaluateRetrieval(sources, []string{"return_policy"})
	if !got.Success || len(got.MissingDocs) != 0 {
		t.Errorf("result = %+v", got)
	}
	if len(got.RetrievedDocs) != 2 {
		t.Errorf("retrieved docs should be deduplicated: %v", got.RetrievedDocs)
	}

	got = EvaluateRetrieval(sources, []string{"return_policy", "faq"})
	if got.Success || len(got.MissingDocs) != 1 || got.MissingDocs[0] != "faq" {
		t.Errorf("result = %+v", got)
	}
}

func TestEvaluateAnswer(t *testing.T) {
	sources := []models.Source{{DocID: "return_policy", Text: "Returns accepted within 30 days in original packaging."}}
	got := EvaluateAnswer("You have 30 days to return items.", sources, []string{"30 days", "original packaging"})
	if got.AnswerCompleteness != 0.5 {
		t.Errorf("answer completeness = %v", got.AnswerCompleteness)
	}
	if got.RetrievalCoverage != 1.0 {
		t.Errorf("retrieval coverage = %v", got.RetrievalCoverage)
	}
}

func TestEvaluateAnswerNoFacts(t *testing.T) {
	got := EvaluateAnswer("anything", nil, nil)
	if got.AnswerCompleteness != 0 || got.RetrievalCoverage != 0 {
		t.Errorf("empty facts result = %+v", got)
	}
}

func TestRunEvaluationAndBenchmark(t *testing.T) {
	// A runner that always retrieves the expected document and repeats the
	// question scores perfect retrieval success.
	run := func(ctx context.Context, question string, topK int) (string, []models.Source, error) {
		var sources []models.Source
		for _, sample := range Dataset {
			if sample.Question == question {
				for _, id := range sample.ExpectedDocIDs {
					sources = append(sources, models.Source{DocID: id, Text: question})
				}
			}
		}
		return question, sources, nil
	}

	result, err := RunEvaluation(context.Background(), run, 5)
	if err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}
	if len(result.Samples) != len(Dataset) {
		t.Fatalf("samples = %d", len(result.Samples))
	}
	if result.AvgRetrievalSuccess != 1.0 {
		t.Errorf("avg retrieval success = %v", result.AvgRetrievalSuccess)
	}

	bench, err := RunBenchmark(context.Background(), run)
	if err != nil {
		t.Fatalf("RunBenchmark: %v", err)
	}
	if len(bench) != len(BenchmarkConfigs) {
		t.Fatalf("benchmark results = %d", len(bench))
	}
	for i, b := range bench {
		if b.TopK != BenchmarkConfigs[i].TopK {
			t.Errorf("config %d top_k = %d", i, b.TopK)
		}
	}
}
