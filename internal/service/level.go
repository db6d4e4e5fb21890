package service

import "github.com/insight-lab/research-go-api/internal/models"

// ComputePass derives the pass flag from a final score and the quiz passing
// threshold. Quizzes without a threshold never pass in the competency sense,
// so the flag stays nil.
func ComputePass(score *float64, quiz models.Quiz) *bool {
	if score == nil || quiz.PassingThreshold == nil {
		return nil
	}

	passed := *score >= *quiz.PassingThreshold
	return &passed
}

// DetermineLevel derives the proficiency tier for a passed competency quiz.
// Non-competency quizzes and failed or unscored attempts get no level. A nil
// threshold removes that tier from consideration and falls through to the
// next check.
func DetermineLevel(score *float64, quiz models.Quiz, passed *bool) *models.ParticipantLevel {
	if score == nil || passed == nil || !*passed {
		return nil
	}

	if quiz.Kind != models.QuizKindCompetency {
		return nil
	}

	level := models.LevelBeginner
	switch {
	case quiz.AdvancedThreshold != nil && *score >= *quiz.AdvancedThreshold:
		level = models.LevelAdvanced
	case quiz.IntermediateThreshold != nil && *score >= *quiz.IntermediateThreshold:
		level = models.LevelIntermediate
	}

	return &level
}
