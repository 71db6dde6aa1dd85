package agent

import (
	"fmt"
	"strings"
	"time"
)

const reactTemplate = `You are a knowledge base assistant with access to several tools. Reason and act strictly in the format below.

System information:
Current date and time: %s

Conversation context:
%s

Available tools:
%s
Core principles:
1. Check the conversation context first: when the question refers to earlier turns, answer from it directly without using any tool.
2. For knowledge questions, use the knowledge_retrieve tool before anything else.
3. Base your answer only on tool observations or the conversation context, never on your own knowledge.
4. When no observation holds relevant information, state clearly that the knowledge base has nothing on the topic.
5. Never fabricate content, source names, URLs or figures.

Source citation rules:
1. An answer drawn from the conversation context cites "source: conversation history".
2. An answer using web_search must include the real URLs from the observation.
3. An answer using knowledge_retrieve must name the source files from the observation.
4. Only URLs and file names that literally appear in an observation may be cited.

Format rules:
1. Follow the Thought -> Action -> Observation cycle exactly.
2. Run one action at a time and wait for its observation.
3. Output Final Answer only once an observation or the conversation context supports it.
%s
Output format:
Thought: [your reasoning]
Action: [tool name]
Action Input: {"param": "value"}

After the observation arrives, continue:
Thought: [reasoning over the observation]
...

When the answer is supported:
Thought: [why the answer is supported]
Final Answer: [the answer]
%s
Question: %s

Begin.`

const reflectionTemplate = `Review the reasoning trajectory below for quality.

Question: %s
Steps taken so far:
%s
Tools used: %s

Evaluate strictly:
1. Is the reasoning grounded in the tool observations alone?
2. Are any cited sources real URLs or file names taken from observations?
3. Is there any sign of fabrication or outside knowledge?

If the trajectory is sound, output: APPROVED
If it needs correction, output: RETRY: [a one-line suggestion]`

const planningTemplate = `Analyse the task below and produce an execution plan.

Task: %s

Available tools: %s

Output a numbered list of steps, one per line:
Step 1: [concrete action]
Step 2: [concrete action]
...

Keep the steps executable and ordered by dependency, preferring the most direct method.`

// buildPrompt renders the initial reasoning prompt. history and plan may be
// empty.
func (a *Agent) buildPrompt(question, history, plan string) string {
	if strings.TrimSpace(history) == "" {
		history = "none"
	}

	bias := ""
	if a.config.Preamble != "" {
		bias = "4. " + a.config.Preamble + "\n"
	}
	planBlock := ""
	if plan != "" {
		planBlock = "\nExecution plan:\n" + plan + "\n"
	}

	return fmt.Sprintf(reactTemplate,
		time.Now().Format("2006-01-02 15:04:05"),
		history,
		a.registry.Catalogue(),
		bias,
		planBlock,
		question,
	)
}

// summariseSteps renders prior steps for the reflection prompt.
func summariseSteps(steps []Step) string {
	if len(steps) == 0 {
		return "none\n"
	}
	var sb strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&sb, "Step %d: thought=%s", s.Step, s.Thought)
		if s.Tool != "" {
			fmt.Fprintf(&sb, "; action=%s(%s)", s.Tool, s.ToolInput)
		}
		if s.Observation != "" {
			fmt.Fprintf(&sb, "; observation=%s", truncateForPrompt(s.Observation, 300))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// truncateForPrompt cuts s to at most n runes for prompt embedding.
func truncateForPrompt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
