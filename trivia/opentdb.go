// Package trivia fetches question sets from the Open Trivia Database.
package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cvakodobro/catch-me-if-you-can-backend/game"
)

const DefaultBaseURL = "https://opentdb.com/api.php"

// Client implements game.QuestionProvider against the opentdb HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	amount     int
	random     game.RandomPolicy
}

func NewClient(baseURL string, amount int, random game.RandomPolicy) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		amount:     amount,
		random:     random,
	}
}

type apiResponse struct {
	ResponseCode int         `json:"response_code"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// FetchQuestions retrieves one question list. Fields arrive RFC 3986
// encoded (encode=url3986) so emoji and punctuation survive transport.
func (c *Client) FetchQuestions(ctx context.Context) ([]game.Question, error) {
	endpoint := fmt.Sprintf(
		"%s?amount=%d&category=9&difficulty=easy&type=multiple&encode=url3986",
		c.baseURL, c.amount,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build trivia request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trivia questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia api status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode trivia response: %w", err)
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia api response code %d", payload.ResponseCode)
	}

	questions := make([]game.Question, 0, len(payload.Results))
	for i, result := range payload.Results {
		question, err := c.mapQuestion(i+1, result)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func (c *Client) mapQuestion(id int, result apiResult) (game.Question, error) {
	prompt, err := url.PathUnescape(result.Question)
	if err != nil {
		return game.Question{}, fmt.Errorf("decode question text: %w", err)
	}
	correct, err := url.PathUnescape(result.CorrectAnswer)
	if err != nil {
		return game.Question{}, fmt.Errorf("decode correct answer: %w", err)
	}

	answers := make([]string, 0, len(result.IncorrectAnswers)+1)
	for _, encoded := range result.IncorrectAnswers {
		answer, err := url.PathUnescape(encoded)
		if err != nil {
			return game.Question{}, fmt.Errorf("decode answer choice: %w", err)
		}
		answers = append(answers, answer)
	}
	answers = append(answers, correct)

	// fix the choice order here; it must not change once the question is
	// posed to a player
	c.random.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	return game.Question{
		Id:            id,
		Prompt:        prompt,
		CorrectAnswer: correct,
		Answers:       answers,
	}, nil
}
