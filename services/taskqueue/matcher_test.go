package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mcbackend/models"
)

func TestComputeMatchScore(t *testing.T) {
	t.Run("priority sets the base score", func(t *testing.T) {
		for priority, expected := range map[models.TaskPriority]float64{
			models.TaskPriorityUrgent: 100,
			models.TaskPriorityHigh:   75,
			models.TaskPriorityMedium: 50,
			models.TaskPriorityLow:    25,
		} {
			score, _, _ := ComputeMatchScore(priority, nil, nil, 0)
			assert.Equal(t, expected, score, "priority %s", priority)
		}
	})

	t.Run("unknown priority scores as medium", func(t *testing.T) {
		score, _, _ := ComputeMatchScore(models.TaskPriority("mystery"), nil, nil, 0)
		assert.Equal(t, 50.0, score)
	})

	t.Run("each matched skill adds a bonus", func(t *testing.T) {
		score, matched, _ := ComputeMatchScore(
			models.TaskPriorityUrgent,
			[]string{"go", "sql", "frontend"},
			[]string{"go", "sql"},
			0,
		)
		assert.Equal(t, 120.0, score)
		assert.ElementsMatch(t, []string{"go", "sql"}, matched)
	})

	t.Run("unmatched task tags add nothing", func(t *testing.T) {
		score, matched, _ := ComputeMatchScore(
			models.TaskPriorityMedium,
			[]string{"rust"},
			[]string{"go"},
			0,
		)
		assert.Equal(t, 50.0, score)
		assert.Empty(t, matched)
	})

	t.Run("load subtracts per held task", func(t *testing.T) {
		score, matched, availability := ComputeMatchScore(
			models.TaskPriorityUrgent,
			[]string{"go", "sql"},
			[]string{"go", "sql"},
			1,
		)
		assert.Equal(t, 105.0, score)
		assert.Len(t, matched, 2)
		assert.Equal(t, 85.0, availability)
	})

	t.Run("availability floors at zero", func(t *testing.T) {
		_, _, availability := ComputeMatchScore(models.TaskPriorityLow, nil, nil, 8)
		assert.Equal(t, 0.0, availability)
	})

	t.Run("heavy load drives score below zero", func(t *testing.T) {
		score, _, _ := ComputeMatchScore(models.TaskPriorityLow, nil, nil, 2)
		assert.Equal(t, -5.0, score)
	})
}
