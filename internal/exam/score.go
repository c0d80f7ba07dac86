package exam

import (
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

// Score grades answers against a test. It is pure: equal inputs give equal results.
//
// Topic buckets are created the first time a correct answer in that topic is
// seen and carry the full number of questions in the topic as their total.
func Score(test *model.Test, answers []model.StudentAnswer, allottedSeconds, remainingSeconds int) model.TestResult {
	byQuestion := make(map[uuid.UUID]int, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.SelectedOption
	}

	topicTotals := make(map[string]int)
	for _, q := range test.Questions {
		topicTotals[q.Topic]++
	}

	result := model.TestResult{
		TotalQuestions: len(test.Questions),
		TopicWiseScore: make(map[string]model.TopicScore),
	}

	for _, q := range test.Questions {
		selected, ok := byQuestion[q.ID]
		switch {
		case !ok:
			result.UnansweredQuestions++
		case selected == q.CorrectAnswer:
			result.CorrectAnswers++
			bucket, seen := result.TopicWiseScore[q.Topic]
			if !seen {
				bucket.Total = topicTotals[q.Topic]
			}
			bucket.Correct++
			result.TopicWiseScore[q.Topic] = bucket
		default:
			result.IncorrectAnswers++
		}
	}

	result.Score = result.CorrectAnswers
	if result.TotalQuestions > 0 {
		result.Percentage = int(math.Round(100 * float64(result.CorrectAnswers) / float64(result.TotalQuestions)))
	}

	result.TimeTakenSeconds = allottedSeconds - remainingSeconds
	if result.TimeTakenSeconds < 0 {
		result.TimeTakenSeconds = 0
	}
	return result
}
