package stats

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"clubadmin/internal/model"
)

func TestPaletteIsDistinct(t *testing.T) {
	seen := make(map[string]bool, len(Palette))
	for _, c := range Palette {
		assert.False(t, seen[c], "duplicate palette color %s", c)
		assert.Equal(t, strings.ToUpper(c), c)
		seen[c] = true
	}
	assert.Len(t, seen, 100)
}

func TestAssignColorNeverReusesWhilePaletteHasRoom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var used []string
	for i := 0; i < len(Palette); i++ {
		c := AssignColor(used, rng)
		assert.NotContains(t, used, c)
		assert.Contains(t, Palette[:], c)
		used = append(used, c)
	}
	assert.Len(t, used, 100)
}

func TestAssignColorIgnoresCase(t *testing.T) {
	used := make([]string, 0, len(Palette)-1)
	for _, c := range Palette[1:] {
		used = append(used, strings.ToLower(c))
	}
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 20; i++ {
		assert.Equal(t, Palette[0], AssignColor(used, rng))
	}
}

func TestAssignColorFallsBackWhenExhausted(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	c := AssignColor(Palette[:], rng)
	assert.Contains(t, Palette[:], c)
}

func TestUsedColors(t *testing.T) {
	got := UsedColors([]model.Category{{Color: "#FF6B6B"}, {Color: ""}, {Color: "#4ecdc4"}})
	assert.Equal(t, []string{"#FF6B6B", "#4ecdc4"}, got)
}
