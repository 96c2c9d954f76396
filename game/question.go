package game

import "context"

// Question is one multiple-choice trivia entry. The answer order is fixed
// once the question is assembled for a player.
type Question struct {
	Id            int      `json:"id"`
	Prompt        string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Answers       []string `json:"answers"`
}

// QuestionProvider supplies one ordered question list per player at game
// start. Lists are consumed from the tail and never refilled.
type QuestionProvider interface {
	FetchQuestions(ctx context.Context) ([]Question, error)
}
