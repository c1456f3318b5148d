package assessment

import (
	"errors"
	"fmt"
	"math"

	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
)

var (
	ErrIncompleteAssessment = errors.New("assessment has no answered questions")
	ErrInvalidAnswer        = errors.New("invalid assessment answer")
)

// Answer is the selected option value for one question.
type Answer struct {
	QuestionID    int `json:"questionId"`
	SelectedValue int `json:"selectedValue"`
}

// Result is the scored outcome of a questionnaire.
type Result struct {
	Score          int    `json:"score"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// Score averages the answered questions, converts the mean to a percentage and
// maps it onto the questionnaire's bands. Unanswered questions are left out of
// the mean. A repeated question id keeps its last answer.
func Score(q model.Questionnaire, answers []Answer) (Result, error) {
	selected := make(map[int]int, len(answers))
	for _, a := range answers {
		question, ok := q.Question(a.QuestionID)
		if !ok {
			return Result{}, fmt.Errorf("%w: unknown question %d", ErrInvalidAnswer, a.QuestionID)
		}
		if !question.Accepts(a.SelectedValue) {
			return Result{}, fmt.Errorf("%w: value %d for question %d", ErrInvalidAnswer, a.SelectedValue, a.QuestionID)
		}
		selected[a.QuestionID] = a.SelectedValue
	}

	if len(selected) == 0 {
		return Result{}, ErrIncompleteAssessment
	}

	total := 0
	for _, value := range selected {
		total += value
	}
	mean := float64(total) / float64(len(selected))
	percent := int(math.Round(mean / 5 * 100))

	band := bandFor(q.Bands, percent)
	return Result{
		Score:          percent,
		Summary:        band.Summary,
		Recommendation: band.Recommendation,
	}, nil
}

func bandFor(bands []model.Band, percent int) model.Band {
	for _, b := range bands {
		if percent >= b.Min {
			return b
		}
	}
	if len(bands) > 0 {
		return bands[len(bands)-1]
	}
	return model.Band{}
}
