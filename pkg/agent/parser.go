package agent

import "strings"

// Markers the model is instructed to emit.
const (
	thoughtMarker     = "Thought:"
	actionMarker      = "Action:"
	actionInputMarker = "Action Input:"
	finalMarker       = "Final Answer:"
	observationMarker = "Observation:"
)

// parsedOutput is the structured form of one model turn.
type parsedOutput struct {
	Thought     string
	Action      string
	ActionInput string
	FinalAnswer string
	HasAction   bool
	HasFinal    bool
}

// Parser states.
const (
	readingThought = iota
	readingAction
	readingInput
	readingFinal
	parseDone
)

// parseOutput walks the model output line by line. Text before any marker
// belongs to the thought; an Action/Action Input pair is captured up to a
// hallucinated Observation line; Final Answer consumes the rest of the
// output.
func parseOutput(text string) parsedOutput {
	var out parsedOutput
	var thought, input, final []string

	state := readingThought
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch state {
		case readingThought:
			switch {
			case strings.HasPrefix(trimmed, finalMarker):
				out.HasFinal = true
				state = readingFinal
				if rest := strings.TrimSpace(trimmed[len(finalMarker):]); rest != "" {
					final = append(final, rest)
				}
			case strings.HasPrefix(trimmed, actionMarker):
				out.HasAction = true
				out.Action = strings.TrimSpace(trimmed[len(actionMarker):])
				state = readingAction
			case strings.HasPrefix(trimmed, thoughtMarker):
				if rest := strings.TrimSpace(trimmed[len(thoughtMarker):]); rest != "" {
					thought = append(thought, rest)
				}
			case trimmed != "":
				thought = append(thought, trimmed)
			}

		case readingAction:
			if strings.HasPrefix(trimmed, actionInputMarker) {
				state = readingInput
				if rest := strings.TrimSpace(trimmed[len(actionInputMarker):]); rest != "" {
					input = append(input, rest)
				}
			}
			// Stray lines between Action and Action Input are dropped.

		case readingInput:
			if strings.HasPrefix(trimmed, observationMarker) || strings.HasPrefix(trimmed, thoughtMarker) {
				state = parseDone
				break
			}
			if trimmed != "" {
				input = append(input, trimmed)
			}

		case readingFinal:
			final = append(final, line)

		case parseDone:
		}

		if state == parseDone {
			break
		}
	}

	out.Thought = strings.Join(thought, "\n")
	out.ActionInput = strings.TrimSpace(strings.Join(input, "\n"))
	out.FinalAnswer = strings.TrimSpace(strings.Join(final, "\n"))
	return out
}
