package stats

import (
	"strings"

	"clubadmin/internal/model"
)

// Palette is the fixed set of category colors.
var Palette = [100]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#6C5CE7", "#A8E6CF", "#FFD93D", "#FCB69F", "#FF6B9D",
	"#C44569", "#F8B195", "#F67280", "#355C7D", "#6C5B7B",
	"#2ECC71", "#3498DB", "#9B59B6", "#E74C3C", "#1ABC9C",
	"#F39C12", "#D35400", "#C0392B", "#8E44AD", "#27AE60",
	"#2980B9", "#16A085", "#F1C40F", "#E67E22", "#95A5A6",
	"#34495E", "#7F8C8D", "#FF4757", "#5F27CD", "#00D2D3",
	"#48DBFB", "#0ABDE3", "#006BA6", "#EE5A24", "#009432",
	"#C4E538", "#F79F1F", "#A3CB38", "#1289A7", "#D980FA",
	"#B53471", "#833471", "#40407A", "#2C2C54", "#474787",
	"#AAA69D", "#227093", "#218C74", "#B33771", "#6D214F",
	"#182C61", "#82589F", "#3C6382", "#F8B500", "#43BE31",
	"#F97F51", "#25CCF7", "#FD7272", "#9AECDB", "#D6A2E8",
	"#55EFC4", "#81ECEC", "#74B9FF", "#A29BFE", "#FFEAA7",
	"#FDCB6E", "#636E72", "#00B894", "#00CEC9", "#0984E3",
	"#B2BEC3", "#DFE6E9", "#4834D4", "#686DE0", "#30336B",
	"#130F40", "#535C68", "#95AFC0", "#22A6B3", "#F0932B",
	"#EB4D4B", "#6AB04C", "#BADC58", "#C7ECEE", "#7BED9F",
	"#70A1FF", "#5352ED", "#3742FA", "#2F3542", "#57606F",
	"#FF6348", "#FF7675", "#FF4834", "#FFA502", "#FF3838",
}

// Picker is a source of uniform random indexes. *rand.Rand from
// math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

// AssignColor picks a random palette color not in used. Once every color
// is taken it picks from the whole palette, so duplicates become possible.
func AssignColor(used []string, rng Picker) string {
	taken := make(map[string]struct{}, len(used))
	for _, c := range used {
		taken[strings.ToUpper(c)] = struct{}{}
	}
	available := make([]string, 0, len(Palette))
	for _, c := range Palette {
		if _, ok := taken[c]; !ok {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return Palette[rng.IntN(len(Palette))]
	}
	return available[rng.IntN(len(available))]
}

// UsedColors collects the non-empty colors of categories.
func UsedColors(categories []model.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.Color != "" {
			out = append(out, c.Color)
		}
	}
	return out
}
