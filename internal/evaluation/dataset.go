// Package evaluation scores pipeline answers against a hand-labeled dataset
// and sweeps retrieval configurations for benchmarking.
package evaluation

// Sample is one labeled evaluation case.
type Sample struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	ExpectedFacts  []string `json:"expected_facts"`
	ExpectedDocIDs []string `json:"expected_doc_ids"`
}

// Dataset is the built-in after-sales evaluation set.
var Dataset = []Sample{
	{
		ID:       "return_policy_1",
		Question: "What is the return policy?",
		ExpectedFacts: []string{
			"30 days",
			"good condition",
			"original packaging",
			"refund within 5 business days",
		},
		ExpectedDocIDs: []string{"return_policy"},
	},
	{
		ID:             "return_policy_2",
		Question:       "How long does it take to get a refund?",
		ExpectedFacts:  []string{"5 business days"},
		ExpectedDocIDs: []string{"return_policy"},
	},
	{
		ID:       "return_policy_3",
		Question: "Which items cannot be returned?",
		ExpectedFacts: []string{
			"personal care products",
			"final sale",
			"digital products",
			"custom-made",
		},
		ExpectedDocIDs: []string{"return_policy"},
	},
	{
		ID:       "shipping_policy_1",
		Question: "What are the shipping options?",
		ExpectedFacts: []string{
			"free standard shipping",
			"orders above $50",
			"express shipping",
			"1-2 days",
		},
		ExpectedDocIDs: []string{"shipping_policy"},
	},
	{
		ID:       "shipping_policy_2",
		Question: "How long does order processing take?",
		ExpectedFacts: []string{
			"1-2 business days",
			"up to 3 days during peak",
		},
		ExpectedDocIDs: []string{"shipping_policy"},
	},
}
