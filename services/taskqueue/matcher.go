package taskqueue

import (
	"mcbackend/models"
)

const (
	skillMatchBonus    = 10.0
	loadPenaltyPerTask = 15.0
)

// ComputeMatchScore scores one agent against one task. The score is the
// task's priority base, plus a bonus per skill tag the agent covers,
// minus a penalty per task the agent already holds. A score of zero or
// below means the agent is ineligible for this task.
//
// Availability is a separate 0-100 load signal used to break ties
// between equally scored agents.
func ComputeMatchScore(
	priority models.TaskPriority,
	taskTagIDs []string,
	agentSkillTags []string,
	activeTaskCount int,
) (score float64, matchedSkills []string, availability float64) {
	score = priority.PriorityScore()

	skills := make(map[string]bool, len(agentSkillTags))
	for _, tag := range agentSkillTags {
		skills[tag] = true
	}
	for _, tag := range taskTagIDs {
		if skills[tag] {
			matchedSkills = append(matchedSkills, tag)
			score += skillMatchBonus
		}
	}

	score -= loadPenaltyPerTask * float64(activeTaskCount)

	availability = 100.0 - loadPenaltyPerTask*float64(activeTaskCount)
	if availability < 0 {
		availability = 0
	}

	return score, matchedSkills, availability
}
