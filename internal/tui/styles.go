package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/hdt-console/internal/scene"
)

var (
	colorTitle  = lipgloss.Color("#7aa2f7")
	colorFg     = lipgloss.Color("#c0caf5")
	colorDim    = lipgloss.Color("#565f89")
	colorBorder = lipgloss.Color("#3b4261")
	colorBarBg  = lipgloss.Color("#1a1b26")
	colorError  = lipgloss.Color("#f7768e")

	titleStyle  = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	textStyle   = lipgloss.NewStyle().Foreground(colorFg)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	codeStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorDim).Padding(0, 1)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a1b26")).Background(colorError).Bold(true).Padding(0, 1)
	userStyle   = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true)
	systemStyle = lipgloss.NewStyle().Foreground(colorError).Italic(true)
)

// classColor maps a metric class to the band colors used on the avatar
func classColor(class string) lipgloss.Color {
	switch class {
	case "alert":
		return lipgloss.Color(scene.ColorAlert.Hex())
	case "warning":
		return lipgloss.Color(scene.ColorWarning.Hex())
	}
	return lipgloss.Color(scene.ColorCalm.Hex())
}
