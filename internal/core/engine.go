package core

import (
	"fmt"
	"strconv"
	"strings"

	"feveroracle-chatbot/pkg"
)

// Engine is the dialogue engine: a deterministic transition table over the
// question catalog plus the risk-scoring rules.  Advance is the only entry
// point, and it is the same code path whether the engine runs inside the
// HTTP server or inside a degraded client.
type Engine struct {
	catalog *Catalog
}

// NewEngine constructs an engine over the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog returns the catalog the engine runs on.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Result is the outcome of feeding one answer into the engine.
//
// Exactly one of two shapes comes back: a question to show next (Question
// set, possibly with Reprompt when the answer was rejected and the step did
// not advance), or a terminal state (Completed true, Analysis set).
type Result struct {
	Question  *pkg.Question
	Reprompt  string
	Analysis  *pkg.Analysis
	Completed bool
}

// ProtocolMismatchError signals an answer submitted against a step the
// catalog does not know.  It means the two sides of the conversation are
// running different dialogue versions, not that the user did anything wrong.
type ProtocolMismatchError struct {
	Step string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("unknown dialogue step %q", e.Step)
}

// Advance feeds one raw answer into the session and returns the next state.
// Malformed user input is never an error: the step stays put and Result
// carries a re-ask prompt.  The only error condition is an unknown step.
// A completed session is left untouched.
func (e *Engine) Advance(s *pkg.Session, raw string) (Result, error) {
	if s.Completed {
		return Result{Completed: true}, nil
	}
	if s.Answers == nil {
		s.Answers = make(map[string]any)
	}

	step := s.CurrentStep
	if step == "" {
		step = pkg.StepStart
	}

	switch step {
	case pkg.StepStart:
		yes, ok := normalizeYesNo(raw)
		if !ok {
			return e.reask(pkg.StepStart, ReaskYesNo), nil
		}
		s.Answers[KeyHasFever] = yes
		if yes {
			return e.goTo(s, StepFeverDuration), nil
		}
		return e.goTo(s, StepOtherSymptoms), nil

	case StepFeverDuration:
		text := strings.TrimSpace(raw)
		if text == "" {
			return e.reask(StepFeverDuration, PromptFeverDuration), nil
		}
		s.Answers[KeyFeverDuration] = text
		return e.goTo(s, StepTemperature), nil

	case StepTemperature:
		temp, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return e.reask(StepTemperature, ReaskTemperature), nil
		}
		s.Answers[KeyTemperature] = temp
		return e.complete(s, scoreTemperature(temp)), nil

	case StepOtherSymptoms:
		yes, ok := normalizeYesNo(raw)
		if !ok {
			return e.reask(StepOtherSymptoms, ReaskYesNo), nil
		}
		s.Answers[KeyOtherSymptoms] = yes
		if yes {
			return e.complete(s, pkg.NewAnalysis(40, FeverTypeGeneral)), nil
		}
		return e.complete(s, pkg.NewAnalysis(20, FeverTypeNone)), nil

	default:
		return Result{}, &ProtocolMismatchError{Step: step}
	}
}

// goTo advances the session to the next step and returns its question.
func (e *Engine) goTo(s *pkg.Session, step string) Result {
	s.CurrentStep = step
	q, _ := e.catalog.Lookup(step)
	return Result{Question: &q}
}

// reask repeats the current step's question with a correction prompt.
func (e *Engine) reask(step, prompt string) Result {
	q, _ := e.catalog.Lookup(step)
	return Result{Question: &q, Reprompt: prompt}
}

// complete marks the session terminal and attaches the analysis.
func (e *Engine) complete(s *pkg.Session, a pkg.Analysis) Result {
	s.CurrentStep = StepComplete
	s.Completed = true
	return Result{Analysis: &a, Completed: true}
}

// scoreTemperature applies the numeric risk rule of the fever branch.
func scoreTemperature(temp float64) pkg.Analysis {
	var score int
	switch {
	case temp > 39.0:
		score = 75
	case temp > 38.0:
		score = 50
	default:
		score = 30
	}
	return pkg.NewAnalysis(score, FeverTypeViral)
}

// normalizeYesNo interprets a free-text answer to a yes/no question.  The
// single letters only match as the whole (trimmed) answer; matching "y" as
// a substring would misread answers like "maybe".
func normalizeYesNo(raw string) (value bool, ok bool) {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "y":
		return true, true
	case "n":
		return false, true
	}
	if strings.Contains(t, "yes") || strings.Contains(t, "yep") {
		return true, true
	}
	if strings.Contains(t, "no") {
		return false, true
	}
	return false, false
}
