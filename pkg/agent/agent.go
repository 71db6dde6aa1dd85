package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agentic-rag-be/pkg/agent/tools"
	"agentic-rag-be/pkg/llm"
)

// BudgetExhaustedMessage is the canonical answer when the iteration budget
// runs out before the model reaches a final answer.
const BudgetExhaustedMessage = "Unable to reach a final answer within the maximum number of iterations"

// toolTimeout bounds a single tool invocation inside the loop.
const toolTimeout = 30 * time.Second

// observationEventLimit caps the observation text carried by stream events;
// the full text still reaches the model and the recorded step.
const observationEventLimit = 500

// Step records one think/act cycle of a run.
type Step struct {
	Step            int                      `json:"step"`
	Thought         string                   `json:"thought"`
	Tool            string                   `json:"tool,omitempty"`
	ToolInput       string                   `json:"tool_input,omitempty"`
	Observation     string                   `json:"observation,omitempty"`
	ObservationData []map[string]interface{} `json:"observation_data,omitempty"`
	Reflection      string                   `json:"reflection,omitempty"`
}

// Response summarises a completed run.
type Response struct {
	Success         bool     `json:"success"`
	Answer          string   `json:"answer"`
	ThoughtProcess  []Step   `json:"thought_process"`
	ToolsUsed       []string `json:"tools_used"`
	Iterations      int      `json:"iterations"`
	FinalReflection string   `json:"final_reflection,omitempty"`
}

// Agent drives a bounded reasoning loop over an LLM provider and a tool
// registry. One Agent serves many runs; per-run state stays local to the
// invocation.
type Agent struct {
	provider llm.LLMProvider
	registry *tools.Registry
	config   Config
	logger   *log.Logger
}

// New creates an agent. A non-positive MaxIterations falls back to the
// default budget.
func New(provider llm.LLMProvider, registry *tools.Registry, config Config, logger *log.Logger) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Agent{
		provider: provider,
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// Run executes the loop without a live event consumer and returns the
// summary.
func (a *Agent) Run(ctx context.Context, question, history string) (*Response, error) {
	return a.RunStream(ctx, question, history, func(Event) error { return nil })
}

// Config returns the loop configuration the agent was built with.
func (a *Agent) Config() Config {
	return a.config
}

// Tools returns the registered tool names in registration order.
func (a *Agent) Tools() []string {
	return a.registry.Names()
}

type observation struct {
	text string
	data []map[string]interface{}
}

// RunStream executes the reasoning loop, delivering trace events to sink in
// order. Tool dispatch is strictly sequential; a (tool, input) pair is never
// invoked twice within one run, repeated requests replay the cached
// observation. Provider failures emit one terminal error event and abort the
// run.
func (a *Agent) RunStream(ctx context.Context, question, history string, sink Sink) (*Response, error) {
	start := time.Now()

	var sinkErr error
	emit := func(ev Event) bool {
		if sinkErr != nil {
			return false
		}
		sinkErr = sink(ev)
		return sinkErr == nil
	}

	if !emit(Event{Type: EventStart, Data: "reasoning started"}) {
		return nil, sinkErr
	}

	plan := ""
	if a.config.EnablePlanning {
		plan = a.plan(ctx, question)
	}
	current := a.buildPrompt(question, history, plan)

	reflectThreshold := a.config.MaxIterations / 2
	if reflectThreshold < 1 {
		reflectThreshold = 1
	}

	var (
		steps          []Step
		toolsUsed      = make([]string, 0, 4)
		seenTool       = make(map[string]bool)
		obsCache       = make(map[string]observation)
		final          string
		found          bool
		answerStreamed bool
		reflected      bool
		hint           string
		iterations     int
	)

	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		iterations = iteration
		a.logger.Printf("[DEBUG] Agent iteration %d/%d", iteration, a.config.MaxIterations)

		if !emit(Event{
			Type: EventIteration,
			Data: map[string]interface{}{"iteration": iteration, "max": a.config.MaxIterations},
			Step: iteration,
		}) {
			return nil, sinkErr
		}
		if !emit(Event{Type: EventThinkingStart, Step: iteration}) {
			return nil, sinkErr
		}

		stream, err := a.provider.StreamComplete(ctx, current,
			llm.WithTemperature(a.config.Temperature),
			llm.WithStop([]string{observationMarker}),
		)
		if err != nil {
			emit(Event{Type: EventError, Data: fmt.Sprintf("provider call failed: %v", err)})
			return nil, err
		}

		var (
			buf       strings.Builder
			answerBuf strings.Builder
			thought   string
			streaming bool
		)
		for chunk := range stream {
			if chunk.Err != nil {
				emit(Event{Type: EventError, Data: fmt.Sprintf("provider stream failed: %v", chunk.Err)})
				return nil, chunk.Err
			}
			buf.WriteString(chunk.Content)

			if streaming {
				answerBuf.WriteString(chunk.Content)
				if !emit(Event{Type: EventAnswerToken, Data: chunk.Content, Step: iteration}) {
					return nil, sinkErr
				}
				continue
			}
			full := buf.String()
			idx := strings.Index(full, finalMarker)
			if idx < 0 {
				continue
			}
			streaming = true
			answerStreamed = true
			thought = parseOutput(full[:idx]).Thought
			if !emit(Event{Type: EventThinkingEnd, Data: thought, Step: iteration}) {
				return nil, sinkErr
			}
			if !emit(Event{Type: EventAnswerStart, Step: iteration}) {
				return nil, sinkErr
			}
			if head := strings.TrimLeft(full[idx+len(finalMarker):], " \t\n"); head != "" {
				answerBuf.WriteString(head)
				if !emit(Event{Type: EventAnswerToken, Data: head, Step: iteration}) {
					return nil, sinkErr
				}
			}
		}

		output := buf.String()

		if streaming {
			final = strings.TrimSpace(answerBuf.String())
			found = true
			steps = append(steps, Step{Step: iteration, Thought: thought, Observation: "final answer reached"})
			break
		}

		parsed := parseOutput(output)
		thought = parsed.Thought
		if !emit(Event{Type: EventThinkingEnd, Data: thought, Step: iteration}) {
			return nil, sinkErr
		}

		if !parsed.HasAction {
			trimmed := strings.TrimSpace(output)
			if trimmed == "" {
				// Nothing usable this round; spend the iteration.
				steps = append(steps, Step{Step: iteration})
				continue
			}
			if thought != "" {
				final = thought
			} else {
				final = trimmed
			}
			found = true
			steps = append(steps, Step{Step: iteration, Thought: thought})
			break
		}

		if !emit(Event{
			Type: EventAction,
			Data: map[string]interface{}{"tool": parsed.Action, "input": parsed.ActionInput},
			Step: iteration,
		}) {
			return nil, sinkErr
		}

		cacheKey := parsed.Action + "\x00" + parsed.ActionInput
		obs, cached := obsCache[cacheKey]
		if !cached {
			obs = a.invokeTool(ctx, parsed.Action, parsed.ActionInput)
			obsCache[cacheKey] = obs
		}
		if !seenTool[parsed.Action] {
			seenTool[parsed.Action] = true
			toolsUsed = append(toolsUsed, parsed.Action)
		}

		if !emit(Event{
			Type: EventObservation,
			Data: map[string]interface{}{"text": truncateForPrompt(obs.text, observationEventLimit), "data": obs.data},
			Step: iteration,
		}) {
			return nil, sinkErr
		}

		steps = append(steps, Step{
			Step:            iteration,
			Thought:         thought,
			Tool:            parsed.Action,
			ToolInput:       parsed.ActionInput,
			Observation:     obs.text,
			ObservationData: obs.data,
		})

		current = current + "\n\n" + output + "\n\nObservation: " + obs.text + "\n\nContinue reasoning:"

		if a.config.EnableReflection && !reflected && len(steps) >= reflectThreshold {
			reflected = true
			if !emit(Event{Type: EventReflecting, Data: "reviewing progress"}) {
				return nil, sinkErr
			}
			approved, suggestion := a.reflect(ctx, question, steps, toolsUsed)
			verdict := "APPROVED"
			if !approved && suggestion != "" {
				verdict = suggestion
				hint = suggestion
				current += "\n\nReviewer feedback: " + suggestion + "\nAdjust your approach accordingly."
			}
			steps[len(steps)-1].Reflection = verdict
			if !emit(Event{Type: EventReflectionResult, Data: verdict}) {
				return nil, sinkErr
			}
		}
	}

	if !found {
		if len(steps) > 0 {
			final = strings.TrimSpace(steps[len(steps)-1].Thought)
		}
		if final == "" {
			final = BudgetExhaustedMessage
		}
	}

	if !answerStreamed {
		if !emit(Event{Type: EventAnswerStart, Step: iterations}) {
			return nil, sinkErr
		}
		if !emit(Event{Type: EventAnswerToken, Data: final, Step: iterations}) {
			return nil, sinkErr
		}
	}
	if !emit(Event{Type: EventAnswer, Data: final, Step: iterations}) {
		return nil, sinkErr
	}
	if !emit(Event{Type: EventMeta, Data: map[string]interface{}{
		"tools_used": toolsUsed,
		"iterations": iterations,
		"elapsed":    time.Since(start).Seconds(),
	}}) {
		return nil, sinkErr
	}
	if !emit(Event{Type: EventDone, Data: final}) {
		return nil, sinkErr
	}

	a.logger.Printf("[DEBUG] Agent run finished: iterations=%d tools=%v elapsed=%.2fs",
		iterations, toolsUsed, time.Since(start).Seconds())

	return &Response{
		Success:         found,
		Answer:          final,
		ThoughtProcess:  steps,
		ToolsUsed:       toolsUsed,
		Iterations:      iterations,
		FinalReflection: hint,
	}, nil
}

// invokeTool dispatches one action. Unknown tools and tool failures come
// back as observations, never as errors, so the model can recover.
func (a *Agent) invokeTool(ctx context.Context, name, input string) observation {
	tool, ok := a.registry.Get(name)
	if !ok {
		return observation{
			text: fmt.Sprintf("unknown tool %q (available: %s)", name, strings.Join(a.registry.Names(), ", ")),
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	result, err := tool.Invoke(toolCtx, input)
	if err != nil {
		return observation{text: fmt.Sprintf("tool %s failed: %v", name, err)}
	}
	return observation{text: result.Text, data: result.Data}
}

// reflect asks the provider to review the trajectory once per run. Failures
// approve by default so reflection can never sink a run.
func (a *Agent) reflect(ctx context.Context, question string, steps []Step, toolsUsed []string) (bool, string) {
	used := "none"
	if len(toolsUsed) > 0 {
		used = strings.Join(toolsUsed, ", ")
	}
	prompt := fmt.Sprintf(reflectionTemplate, question, summariseSteps(steps), used)

	raw, err := a.provider.Complete(ctx, prompt, llm.WithTemperature(a.config.Temperature))
	if err != nil {
		a.logger.Printf("[WARN] Reflection check failed: %v", err)
		return true, ""
	}
	if idx := strings.Index(raw, "RETRY:"); idx >= 0 {
		return false, strings.TrimSpace(raw[idx+len("RETRY:"):])
	}
	// Anything else, including an explicit APPROVED, passes.
	return true, ""
}

// plan asks the provider for a step plan ahead of the first iteration. Best
// effort only.
func (a *Agent) plan(ctx context.Context, task string) string {
	prompt := fmt.Sprintf(planningTemplate, task, strings.Join(a.registry.Names(), ", "))

	raw, err := a.provider.Complete(ctx, prompt, llm.WithTemperature(a.config.Temperature))
	if err != nil {
		a.logger.Printf("[WARN] Planning failed: %v", err)
		return ""
	}
	return strings.TrimSpace(raw)
}
