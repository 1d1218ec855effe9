package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubadmin/internal/model"
)

func capacity(n int) *int { return &n }

func TestSlotStatus(t *testing.T) {
	tests := []struct {
		name  string
		club  model.Club
		slots int
		want  string
	}{
		{name: "full", club: model.Club{Capacity: capacity(20), CurrentStudents: 20}, want: SlotsFull},
		{name: "over capacity", club: model.Club{Capacity: capacity(20), CurrentStudents: 25}, want: SlotsFull},
		{name: "limited", club: model.Club{Capacity: capacity(20), CurrentStudents: 16}, slots: 4, want: SlotsLimited},
		{name: "open", club: model.Club{Capacity: capacity(20), CurrentStudents: 15}, slots: 5, want: SlotsOpen},
		{name: "no capacity", club: model.Club{CurrentStudents: 100}, want: SlotsOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SlotStatus(tt.club)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			slots, _, err := AvailableSlots(tt.club)
			require.NoError(t, err)
			assert.Equal(t, tt.slots, slots)
		})
	}
}

func TestAvailableSlotsRejectsNegativeCounts(t *testing.T) {
	_, _, err := AvailableSlots(model.Club{ID: "c", CurrentStudents: -1})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, _, err = AvailableSlots(model.Club{ID: "c", Capacity: capacity(-5)})
	assert.True(t, errors.As(err, &verr))

	_, err = SummarizeClubs([]model.Club{{Capacity: capacity(10)}, {CurrentStudents: -2}})
	assert.Error(t, err)
}

func TestSummarizeClubs(t *testing.T) {
	got, err := SummarizeClubs([]model.Club{
		{Capacity: capacity(20), CurrentStudents: 10},
		{Capacity: capacity(20), CurrentStudents: 20},
		{CurrentStudents: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, ClubSummary{Clubs: 3, TotalCapacity: 40, TotalStudents: 37, FillPercentage: 92.5}, got)
}

func TestCanDelete(t *testing.T) {
	err := CanDelete(model.Category{Name: "Sport", ClubCount: 3})
	assert.True(t, errors.Is(err, ErrCategoryInUse))

	assert.NoError(t, CanDelete(model.Category{Name: "Art"}))
}

func TestSummarizeCategories(t *testing.T) {
	got := SummarizeCategories([]model.Category{
		{IsActive: true, ClubCount: 3},
		{IsActive: false, ClubCount: 0},
		{IsActive: true, ClubCount: 2},
	})
	assert.Equal(t, CategorySummary{Total: 3, Active: 2, TotalClubs: 5, AverageClubs: 2}, got)
	assert.Equal(t, CategorySummary{}, SummarizeCategories(nil))
}
