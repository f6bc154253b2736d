package workspace

import "fmt"

// ThemeName identifies a colour theme.
type ThemeName string

const (
	Space  ThemeName = "space"
	Ocean  ThemeName = "ocean"
	Forest ThemeName = "forest"
	Candy  ThemeName = "candy"
	Sunset ThemeName = "sunset"

	DefaultTheme = Space
)

// Palette holds a theme's colours as hex strings.
type Palette struct {
	Primary    string
	Secondary  string
	Accent     string
	Background string
	Surface    string
	Text       string
	TextMuted  string
}

// Theme is a named palette.
type Theme struct {
	Name        ThemeName
	DisplayName string
	Emoji       string
	Colors      Palette
}

// Themes lists every theme in display order.
var Themes = []Theme{
	{Space, "Space Adventure", "🚀", Palette{"#8B5CF6", "#6366F1", "#F59E0B", "#0F0B1A", "#1E1832", "#F8FAFC", "#94A3B8"}},
	{Ocean, "Ocean Explorer", "🐠", Palette{"#06B6D4", "#0891B2", "#F97316", "#0C1929", "#1E3A5F", "#F0F9FF", "#7DD3FC"}},
	{Forest, "Magical Forest", "🌲", Palette{"#22C55E", "#16A34A", "#FACC15", "#0D1F12", "#1A3D22", "#F0FDF4", "#86EFAC"}},
	{Candy, "Candy Land", "🍭", Palette{"#EC4899", "#F472B6", "#8B5CF6", "#1F1020", "#3D1F3D", "#FDF2F8", "#F9A8D4"}},
	{Sunset, "Sunset Beach", "🌅", Palette{"#F97316", "#FB923C", "#EAB308", "#1C1412", "#3D2820", "#FFF7ED", "#FDBA74"}},
}

// LookupTheme returns the theme called name.
func LookupTheme(name ThemeName) (Theme, bool) {
	for _, t := range Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// ParseTheme validates a theme name.
func ParseTheme(s string) (ThemeName, error) {
	if _, ok := LookupTheme(ThemeName(s)); !ok {
		return "", fmt.Errorf("unknown theme %q", s)
	}
	return ThemeName(s), nil
}
