package tui

import (
	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/contracts"
)

// StyleConfig holds all customizable style colors for the report UI.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// Health level colors, best to worst
	Excellent lipgloss.Color
	Good      lipgloss.Color
	Moderate  lipgloss.Color
	Poor      lipgloss.Color
	Toxic     lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),

		Excellent: lipgloss.Color("#34A853"),
		Good:      lipgloss.Color("#81C995"),
		Moderate:  lipgloss.Color("#FBBC04"),
		Poor:      lipgloss.Color("#F28B82"),
		Toxic:     lipgloss.Color("#EA4335"),
	}
}

// LevelColor returns the color for a health level.
func (s *StyleConfig) LevelColor(level contracts.HealthLevel) lipgloss.Color {
	switch level {
	case contracts.HealthExcellent:
		return s.Excellent
	case contracts.HealthGood:
		return s.Good
	case contracts.HealthModerate:
		return s.Moderate
	case contracts.HealthPoor:
		return s.Poor
	case contracts.HealthToxic:
		return s.Toxic
	}
	return s.TextSecondary
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// PanelStyle returns a bordered panel style, highlighted when focused.
func (s *StyleConfig) PanelStyle(focused bool) lipgloss.Style {
	border := s.BorderColor
	if focused {
		border = s.AccentBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}
