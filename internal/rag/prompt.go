package rag

import (
	"fmt"
	"strconv"
	"strings"
)

const answerPromptTemplate = `You are an after-sales service assistant for an e-commerce website.
You will receive two sections: CONTEXT and QUESTION.

Rules:
- Use only the information found in CONTEXT to answer the QUESTION.
- If the answer is not contained in CONTEXT, respond with "I don't know."
- Never invent details, policies, or procedures.
- Keep the answer factual, concise, and customer-friendly.

Output Format (Markdown Required):
- Respond **only in Markdown**.
- Use simple Markdown formatting, such as:
  - ` + "`-`" + ` for bullet points
  - ` + "`**bold**`" + ` for emphasis (optional)
  - table
  - code block
  - titles
  - etc
- Do NOT use HTML.

CONTEXT:
%s

QUESTION:
%s
`

// BuildPrompt assembles the constrained answering prompt from the retrieved
// context and the user's original question.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(answerPromptTemplate, context, question)
}

// UnescapeAnswer interprets escape sequences the model sometimes emits
// literally (\n, \t, \uXXXX). Each line is unquoted separately because raw
// newlines are not valid inside a quoted literal; a line that fails to
// unquote is kept unchanged.
func UnescapeAnswer(answer string) string {
	lines := strings.Split(answer, "\n")
	for i, line := range lines {
		if !strings.Contains(line, `\`) {
			continue
		}
		quoted := `"` + strings.ReplaceAll(line, `"`, `\"`) + `"`
		if out, err := strconv.Unquote(quoted); err == nil {
			lines[i] = out
		}
	}
	return strings.Join(lines, "\n")
}
