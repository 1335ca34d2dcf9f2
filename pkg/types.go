package pkg

import (
	"strings"
	"time"
)

// Session prefixes distinguish who owns the conversation. Remote sessions
// keep the id handed out by the backend (historically "chat_..."); local
// sessions are minted by the controller. The controller routes every call
// based on this prefix.
const (
	LocalSessionPrefix  = "local_"
	RemoteSessionPrefix = "chat_"
)

// StepStart is the first step of every conversation.
const StepStart = "start"

// Session is the working memory of one conversation. It is exclusively
// owned by a single controller and is never shared across conversations.
type Session struct {
	ID          string         `json:"id"`
	CurrentStep string         `json:"current_step"`
	Answers     map[string]any `json:"answers"`
	Completed   bool           `json:"completed"`
}

// IsLocal reports whether the session is driven by the embedded engine
// rather than the remote backend.
func (s *Session) IsLocal() bool {
	return strings.HasPrefix(s.ID, LocalSessionPrefix)
}

// QuestionType describes the expected answer shape for a catalog entry.
type QuestionType string

const (
	TypeYesNo       QuestionType = "yes_no"
	TypeChoice      QuestionType = "choice"
	TypeMultiChoice QuestionType = "multi_choice"
	TypeNumeric     QuestionType = "numeric_free_text"
)

// Question is one entry of the question catalog.
type Question struct {
	Key     string       `json:"key"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"question"`
	Options []string     `json:"options,omitempty"`
}

// RiskLevel is the categorical band derived from the risk score.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// LevelForScore maps a risk score to its band. The bands are fixed:
// high above 70, medium above 50, low otherwise.
func LevelForScore(score int) RiskLevel {
	switch {
	case score > 70:
		return RiskHigh
	case score > 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RecommendationFor returns the guidance text for a risk band. The text is
// a function of the band alone so that every producer of an Analysis,
// local or remote, hands the patient the same guidance for the same score.
func RecommendationFor(level RiskLevel) string {
	switch level {
	case RiskHigh:
		return "Seek immediate medical care."
	case RiskMedium:
		return "Monitor your symptoms closely and consult a doctor if they worsen."
	default:
		return "Rest, stay hydrated, and monitor your symptoms. Consult a doctor if they persist."
	}
}

// Analysis is the terminal output of a completed assessment.
type Analysis struct {
	RiskScore          int       `json:"risk_score"`
	RiskLevel          RiskLevel `json:"risk_level"`
	SuspectedFeverType string    `json:"suspected_fever_type"`
	Recommendation     string    `json:"recommendation"`
}

// NewAnalysis derives the band and recommendation from the score so the
// invariants cannot drift between call sites.
func NewAnalysis(score int, feverType string) Analysis {
	level := LevelForScore(score)
	return Analysis{
		RiskScore:          score,
		RiskLevel:          level,
		SuspectedFeverType: feverType,
		Recommendation:     RecommendationFor(level),
	}
}

// StartSessionResponse is returned by POST /api/chatbot/start-session.
type StartSessionResponse struct {
	SessionID    string    `json:"session_id"`
	Message      string    `json:"message"`
	NextQuestion *Question `json:"next_question"`
}

// MessageRequest is the body of POST /api/chatbot/message. The server keeps
// no per-session state, so the accumulated answers and the current step
// round-trip with every message.
type MessageRequest struct {
	SessionID   string         `json:"session_id"`
	Message     string         `json:"message"`
	CurrentStep string         `json:"current_step"`
	Answers     map[string]any `json:"session_data"`
}

// MessageResponse is the reply to a message. When the conversation
// terminates, Completed is true and Analysis is set; otherwise NextQuestion
// carries the prompt to show. Message repeats the prompt (or the
// recommendation) as display text.
type MessageResponse struct {
	SessionID    string         `json:"session_id"`
	Message      string         `json:"message"`
	NextQuestion *Question      `json:"next_question,omitempty"`
	Reprompt     string         `json:"reprompt,omitempty"`
	Answers      map[string]any `json:"session_data,omitempty"`
	Completed    bool           `json:"completed"`
	Analysis     *Analysis      `json:"analysis,omitempty"`
}

// ReportRequest is the body of POST /api/chatbot/submit-report.
type ReportRequest struct {
	SessionID string         `json:"session_id"`
	Answers   map[string]any `json:"session_data"`
	Analysis  Analysis       `json:"analysis"`
}

// Report is a persisted symptom report row.
type Report struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id,omitempty"`
	SessionID          string         `json:"session_id"`
	Answers            map[string]any `json:"answers"`
	SuspectedFeverType string         `json:"suspected_fever_type"`
	Temperature        *float64       `json:"temperature,omitempty"`
	Recommendation     string         `json:"recommendation"`
	RiskScore          int            `json:"risk_score"`
	RiskLevel          RiskLevel      `json:"risk_level"`
	CreatedAt          time.Time      `json:"created_at"`
}
