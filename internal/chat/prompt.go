package chat

import (
	"fmt"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

// SystemPrompt instructs the model to keep its chain of thought inside
// reasoning delimiters so the splitter can separate it from the answer.
const SystemPrompt = `You are a helpful assistant that answers questions using the provided context when it is available.

Think through the problem privately before answering. Wrap ALL of your private reasoning in <think> and </think> tags, then write the final answer outside the tags. Never mention the tags or the reasoning process in the final answer.

When context is provided, ground your answer in it and say so when the context does not cover the question. When no context is provided, answer from general knowledge.`

const groundedPromptFormat = `Context: %s

Original Question: %s
Please provide a comprehensive answer based on the available information.`

const ungroundedPromptFormat = `Original Question: %s

No relevant information found in documents or web search. Please provide a general response based on your knowledge.`

// BuildPrompt assembles the user prompt for one turn from the grounding
// context the retrieval tier selected. An empty grounding produces the
// explicit no-context variant rather than a bare question, so the model
// knows retrieval was attempted.
func BuildPrompt(grounding retrieval.Context, question string) string {
	if grounding.Text == "" {
		return fmt.Sprintf(ungroundedPromptFormat, question)
	}
	return fmt.Sprintf(groundedPromptFormat, grounding.Text, question)
}

// BuildPlainPrompt returns the prompt for a turn where retrieval was
// disabled entirely.
func BuildPlainPrompt(question string) string {
	return question
}
