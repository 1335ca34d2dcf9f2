package core

import "feveroracle-chatbot/pkg"

// Step identifiers of the dialogue.  The start step lives in pkg because
// session bootstrapping needs it; the rest are internal to the flow.
const (
	StepFeverDuration = "fever_duration"
	StepTemperature   = "temperature"
	StepOtherSymptoms = "other_symptoms"
	StepComplete      = "complete"
)

// Answer keys recorded in the session's working memory.
const (
	KeyHasFever      = "has_fever"
	KeyFeverDuration = "fever_duration"
	KeyTemperature   = "temperature"
	KeyOtherSymptoms = "other_symptoms"
)

// Suspected fever type labels produced by the engine.
const (
	FeverTypeViral   = "Viral Fever"
	FeverTypeGeneral = "General Symptoms"
	FeverTypeNone    = "No Fever"
)

// Catalog is the static, read-only table of dialogue questions.  It is the
// single source of truth for both the HTTP server and the embedded engine:
// a divergence between the two modes can only come from running different
// builds, never from two hand-maintained copies.
type Catalog struct {
	questions map[string]pkg.Question
}

// DefaultCatalog returns the symptom-assessment question set.
func DefaultCatalog() *Catalog {
	qs := []pkg.Question{
		{
			Key:     pkg.StepStart,
			Type:    pkg.TypeYesNo,
			Prompt:  PromptStart,
			Options: []string{"Yes", "No"},
		},
		{
			Key:    StepFeverDuration,
			Type:   pkg.TypeChoice,
			Prompt: PromptFeverDuration,
			Options: []string{
				"Less than 24 hours",
				"1-3 days",
				"4-7 days",
				"More than a week",
			},
		},
		{
			Key:    StepTemperature,
			Type:   pkg.TypeNumeric,
			Prompt: PromptTemperature,
		},
		{
			Key:     StepOtherSymptoms,
			Type:    pkg.TypeYesNo,
			Prompt:  PromptOtherSymptoms,
			Options: []string{"Yes", "No"},
		},
	}
	m := make(map[string]pkg.Question, len(qs))
	for _, q := range qs {
		m[q.Key] = q
	}
	return &Catalog{questions: m}
}

// Lookup returns the question for a step key.
func (c *Catalog) Lookup(key string) (pkg.Question, bool) {
	q, ok := c.questions[key]
	return q, ok
}

// Start returns the opening question of every conversation.
func (c *Catalog) Start() pkg.Question {
	return c.questions[pkg.StepStart]
}
