package fieldsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculateProgress(t *testing.T) {
	record := &InspectionRecord{
		Items: []InspectionItem{
			{ID: "a", Status: ItemStatusCompleted},
			{ID: "b", Status: ItemStatusPending},
			{ID: "c", Status: ItemStatusInProgress},
		},
	}

	record.RecalculateProgress()
	assert.Equal(t, 3, record.Progress.Total)
	assert.Equal(t, 1, record.Progress.Completed)
	assert.Equal(t, 33, record.Progress.Percentage)

	// Failed and not-applicable items do not count as completed
	record.Items[1].Status = ItemStatusFailed
	record.Items[2].Status = ItemStatusNotApplicable
	record.RecalculateProgress()
	assert.Equal(t, 1, record.Progress.Completed)
	assert.Equal(t, 33, record.Progress.Percentage)

	record.Items[1].Status = ItemStatusCompleted
	record.Items[2].Status = ItemStatusCompleted
	record.RecalculateProgress()
	assert.Equal(t, 100, record.Progress.Percentage)
}

func TestRecalculateProgress_NoItems(t *testing.T) {
	record := &InspectionRecord{}
	record.RecalculateProgress()
	assert.Equal(t, 0, record.Progress.Total)
	assert.Equal(t, 0, record.Progress.Percentage)
}

func TestRecalculateProgress_Rounding(t *testing.T) {
	// 2 of 3 rounds to 67, not 66
	record := &InspectionRecord{
		Items: []InspectionItem{
			{ID: "a", Status: ItemStatusCompleted},
			{ID: "b", Status: ItemStatusCompleted},
			{ID: "c", Status: ItemStatusPending},
		},
	}
	record.RecalculateProgress()
	assert.Equal(t, 67, record.Progress.Percentage)
}

func TestInspectionStatusTransitions(t *testing.T) {
	assert.True(t, InspectionStatusDraft.CanTransitionTo(InspectionStatusInProgress))
	assert.True(t, InspectionStatusDraft.CanTransitionTo(InspectionStatusCompleted))
	assert.True(t, InspectionStatusInProgress.CanTransitionTo(InspectionStatusCompleted))

	// Completion is exactly once
	assert.False(t, InspectionStatusCompleted.CanTransitionTo(InspectionStatusInProgress))
	assert.False(t, InspectionStatusCompleted.CanTransitionTo(InspectionStatusCompleted))
	assert.False(t, InspectionStatusInProgress.CanTransitionTo(InspectionStatusDraft))
}

func TestInspectionStatusIsEditable(t *testing.T) {
	assert.True(t, InspectionStatusDraft.IsEditable())
	assert.True(t, InspectionStatusInProgress.IsEditable())
	assert.False(t, InspectionStatusCompleted.IsEditable())
}

func TestItemLookup(t *testing.T) {
	record := &InspectionRecord{
		Items: []InspectionItem{{ID: "roof"}, {ID: "hvac"}},
	}

	item := record.Item("hvac")
	assert.NotNil(t, item)

	// Returned pointer aliases the record's item
	item.Status = ItemStatusCompleted
	assert.Equal(t, ItemStatusCompleted, record.Items[1].Status)

	assert.Nil(t, record.Item("missing"))
}
