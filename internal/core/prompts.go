package core

// prompts.go collects the user-facing strings of the dialogue.  Keeping them
// in one file makes them easy to tweak without touching the engine logic,
// and keeps the server and the embedded engine word-for-word identical.

const (
	// PromptStart greets the patient and asks the opening question.
	PromptStart = "Hello! I'm here to help assess your symptoms. Do you currently have a fever?"

	// PromptFeverDuration asks how long the fever has lasted.
	PromptFeverDuration = "How long have you had the fever?"

	// PromptTemperature asks for the current body temperature.
	PromptTemperature = "What is your current body temperature? (in Celsius)"

	// PromptOtherSymptoms asks the no-fever branch about remaining symptoms.
	PromptOtherSymptoms = "Do you have any other symptoms, like headache, body aches, or a cough?"

	// ReaskYesNo is shown when a yes/no question gets an answer that is
	// neither affirmative nor negative.  The step does not advance.
	ReaskYesNo = "Please answer with Yes or No."

	// ReaskTemperature is shown when the temperature answer does not parse
	// as a number.  The step does not advance.
	ReaskTemperature = "Please enter a valid temperature number."

	// SessionStartedMessage is the display text of a freshly opened session.
	SessionStartedMessage = "Session started"
)
