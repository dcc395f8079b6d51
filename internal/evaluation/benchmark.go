package evaluation

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// QueryFunc answers one question with an explicit retrieval depth. topK <= 0
// means "use the configured default".
type QueryFunc func(ctx context.Context, question string, topK int) (answer string, sources []models.Source, err error)

// SampleResult is the evaluation outcome for one dataset sample.
type SampleResult struct {
	ID        string          `json:"id"`
	Question  string          `json:"question"`
	Retrieval RetrievalResult `json:"retrieval"`
	Answer    AnswerResult    `json:"answer"`
}

// RunResult aggregates one evaluation pass over the dataset.
type RunResult struct {
	Samples               []SampleResult `json:"samples"`
	AvgRetrievalSuccess   float64        `json:"avg_retrieval_success"`
	AvgAnswerCompleteness float64        `json:"avg_answer_completeness"`
	AvgRetrievalCoverage  float64        `json:"avg_retrieval_coverage"`
}

// RunEvaluation answers every dataset sample at the given retrieval depth and
// scores retrieval and answer quality.
func RunEvaluation(ctx context.Context, run QueryFunc, topK int) (*RunResult, error) {
	out := &RunResult{Samples: make([]SampleResult, 0, len(Dataset))}
	for _, sample := range Dataset {
		answer, sources, err := run(ctx, sample.Question, topK)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", sample.ID, err)
		}
		retrieval := EvaluateRetrieval(sources, sample.ExpectedDocIDs)
		answerEval := EvaluateAnswer(answer, sources, sample.ExpectedFacts)
		out.Samples = append(out.Samples, SampleResult{
			ID:        sample.ID,
			Question:  sample.Question,
			Retrieval: retrieval,
			Answer:    answerEval,
		})
		if retrieval.Success {
			out.AvgRetrievalSuccess++
		}
		out.AvgAnswerCompleteness += answerEval.AnswerCompleteness
		out.AvgRetrievalCoverage += answerEval.RetrievalCoverage
	}
	n := float64(len(Dataset))
	out.AvgRetrievalSuccess /= n
	out.AvgAnswerCompleteness /= n
	out.AvgRetrievalCoverage /= n
	return out, nil
}

// BenchmarkConfig is one retrieval-depth configuration in the sweep.
type BenchmarkConfig struct {
	Name string `json:"name"`
	TopK int    `json:"top_k"`
}

// BenchmarkConfigs is the default sweep.
var BenchmarkConfigs = []BenchmarkConfig{
	{Name: "top_k_3", TopK: 3},
	{Name: "top_k_5", TopK: 5},
	{Name: "top_k_8", TopK: 8},
}

// BenchmarkResult aggregates one configuration's run.
type BenchmarkResult struct {
	Config                string  `json:"config"`
	TopK                  int     `json:"top_k"`
	AvgRetrievalSuccess   float64 `json:"avg_retrieval_success"`
	AvgAnswerCompleteness float64 `json:"avg_answer_completeness"`
	AvgRetrievalCoverage  float64 `json:"avg_retrieval_coverage"`
}

// RunBenchmark evaluates the dataset under every configuration in the sweep.
func RunBenchmark(ctx context.Context, run QueryFunc) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(BenchmarkConfigs))
	for _, cfg := range BenchmarkConfigs {
		runResult, err := RunEvaluation(ctx, run, cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", cfg.Name, err)
		}
		results = append(results, BenchmarkResult{
			Config:                cfg.Name,
			TopK:                  cfg.TopK,
			AvgRetrievalSuccess:   runResult.AvgRetrievalSuccess,
			AvgAnswerCompleteness: runResult.AvgAnswerCompleteness,
			AvgRetrievalCoverage:  runResult.AvgRetrievalCoverage,
		})
	}
	return results, nil
}
