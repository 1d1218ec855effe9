package stats

import (
	"fmt"
	"math"

	"clubadmin/internal/model"
)

// Slot statuses shown next to a club.
const (
	SlotsFull    = "full"
	SlotsLimited = "limited"
	SlotsOpen    = "open"
)

// limitedSlots is the threshold below which a club shows as nearly full.
const limitedSlots = 5

// AvailableSlots returns capacity minus current students. defined is false
// when the club has no capacity limit.
func AvailableSlots(c model.Club) (slots int, defined bool, err error) {
	if c.CurrentStudents < 0 {
		return 0, false, invalid("currentStudents", "club %q has negative student count %d", c.ID, c.CurrentStudents)
	}
	if c.Capacity == nil {
		return 0, false, nil
	}
	if *c.Capacity < 0 {
		return 0, false, invalid("capacity", "club %q has negative capacity %d", c.ID, *c.Capacity)
	}
	return max(*c.Capacity-c.CurrentStudents, 0), true, nil
}

// SlotStatus classifies a club by its remaining slots.
func SlotStatus(c model.Club) (string, error) {
	slots, defined, err := AvailableSlots(c)
	if err != nil {
		return "", err
	}
	switch {
	case !defined:
		return SlotsOpen, nil
	case slots == 0:
		return SlotsFull, nil
	case slots < limitedSlots:
		return SlotsLimited, nil
	default:
		return SlotsOpen, nil
	}
}

// ClubSummary aggregates capacity over a list of clubs.
type ClubSummary struct {
	Clubs          int     `json:"totalClubs"`
	TotalCapacity  int     `json:"totalCapacity"`
	TotalStudents  int     `json:"totalStudents"`
	FillPercentage float64 `json:"averageFill"`
}

// SummarizeClubs sums capacity and enrolled students. Clubs without a
// capacity count toward students only.
func SummarizeClubs(clubs []model.Club) (ClubSummary, error) {
	sum := ClubSummary{Clubs: len(clubs)}
	for _, c := range clubs {
		if _, _, err := AvailableSlots(c); err != nil {
			return ClubSummary{}, err
		}
		if c.Capacity != nil {
			sum.TotalCapacity += *c.Capacity
		}
		sum.TotalStudents += c.CurrentStudents
	}
	sum.FillPercentage = Percentage(sum.TotalStudents, sum.TotalCapacity)
	return sum, nil
}

// CanDelete refuses categories that clubs still reference.
func CanDelete(c model.Category) error {
	if c.ClubCount > 0 {
		return fmt.Errorf("%w: %d clubs reference %q", ErrCategoryInUse, c.ClubCount, c.Name)
	}
	return nil
}

// CategorySummary is the header of the categories page.
type CategorySummary struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	TotalClubs   int `json:"totalClubs"`
	AverageClubs int `json:"averageClubs"`
}

func SummarizeCategories(categories []model.Category) CategorySummary {
	var sum CategorySummary
	sum.Total = len(categories)
	for _, c := range categories {
		if c.IsActive {
			sum.Active++
		}
		sum.TotalClubs += c.ClubCount
	}
	if sum.Total > 0 {
		sum.AverageClubs = int(math.Round(float64(sum.TotalClubs) / float64(sum.Total)))
	}
	return sum
}
