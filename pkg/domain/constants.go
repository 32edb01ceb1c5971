package domain

// Wire keys of the step schema exchanged with the model.
const (
	KeyTitle      = "title"
	KeyContent    = "content"
	KeyNextAction = "next_action"
)

// FinalAnswerTitle is the display title of the terminal transcript entry.
const FinalAnswerTitle = "Final Answer"
