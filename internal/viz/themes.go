package viz

import (
	"image/color"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the field views and the TUI chrome.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color

	Fluid   lipgloss.Color
	Surface lipgloss.Color
	Air     lipgloss.Color
	Solid   lipgloss.Color
	Arrow   lipgloss.Color
}

var (
	ThemeOcean = Theme{
		Name:    "ocean",
		Primary: lipgloss.Color("#00a8cc"),
		Accent:  lipgloss.Color("#ffd700"),
		Text:    lipgloss.Color("#e0f0ff"),
		Muted:   lipgloss.Color("#4488aa"),
		Error:   lipgloss.Color("#ff4444"),
		Fluid:   lipgloss.Color("#0077be"),
		Surface: lipgloss.Color("#7fd4ff"),
		Air:     lipgloss.Color("#001a33"),
		Solid:   lipgloss.Color("#c8a165"),
		Arrow:   lipgloss.Color("#ffffff"),
	}

	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Primary: lipgloss.Color("#ff00ff"),
		Accent:  lipgloss.Color("#ffff00"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666666"),
		Error:   lipgloss.Color("#ff0000"),
		Fluid:   lipgloss.Color("#00ffff"),
		Surface: lipgloss.Color("#ff00ff"),
		Air:     lipgloss.Color("#0a0a0a"),
		Solid:   lipgloss.Color("#ffff00"),
		Arrow:   lipgloss.Color("#ff88ff"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Error:   lipgloss.Color("#ff0000"),
		Fluid:   lipgloss.Color("#00cc00"),
		Surface: lipgloss.Color("#88ff88"),
		Air:     lipgloss.Color("#001100"),
		Solid:   lipgloss.Color("#ffff00"),
		Arrow:   lipgloss.Color("#ccffcc"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Error:   lipgloss.Color("#ff0000"),
		Fluid:   lipgloss.Color("#888888"),
		Surface: lipgloss.Color("#cccccc"),
		Air:     lipgloss.Color("#000000"),
		Solid:   lipgloss.Color("#ffffff"),
		Arrow:   lipgloss.Color("#0088ff"),
	}

	ThemeSunset = Theme{
		Name:    "sunset",
		Primary: lipgloss.Color("#ff6b6b"),
		Accent:  lipgloss.Color("#feca57"),
		Text:    lipgloss.Color("#fff5f5"),
		Muted:   lipgloss.Color("#8b6b8c"),
		Error:   lipgloss.Color("#ff4757"),
		Fluid:   lipgloss.Color("#ff9ff3"),
		Surface: lipgloss.Color("#feca57"),
		Air:     lipgloss.Color("#2d1b2e"),
		Solid:   lipgloss.Color("#5fd068"),
		Arrow:   lipgloss.Color("#fff5f5"),
	}

	CurrentTheme = ThemeOcean

	Themes = []Theme{
		ThemeOcean,
		ThemeCyberpunk,
		ThemeRetroGreen,
		ThemeMinimal,
		ThemeSunset,
	}
)

// GetTheme returns a theme by name, or the ocean theme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeOcean
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
}

// RGBA converts a hex theme color for image output.
func RGBA(c lipgloss.Color) color.RGBA {
	r, g, b := parseHex(string(c))
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
