package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/controller"
	"github.com/iksnae/hdt-console/internal/scene"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(bannerStyle.Render(m.errText))
		b.WriteString("\n")
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.renderMetrics()),
		panelStyle.Render(m.renderAvatar()),
	)
	b.WriteString(panels)
	b.WriteString("\n")

	b.WriteString(panelStyle.Render(m.transcript.View()))
	b.WriteString("\n")
	if m.working {
		b.WriteString(m.spinner.View() + " " + dimStyle.Render("working on it..."))
		b.WriteString("\n")
	}
	if m.state.Controls.Chat {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) renderHeader() string {
	role := "no role"
	if m.state.Role != "" {
		role = m.state.Role.Title()
	}
	user := m.user
	if user == "" {
		user = "anonymous"
	}
	parts := []string{
		titleStyle.Render("HDT Console"),
		textStyle.Render(user),
		textStyle.Render(role),
		dimStyle.Render(m.state.Phase.String()),
		textStyle.Render(m.duration),
		dimStyle.Render("live: " + m.live),
	}
	return strings.Join(parts, dimStyle.Render("  │  "))
}

func (m Model) renderMetrics() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Metrics"))
	b.WriteString("\n")
	if len(m.bars) == 0 {
		b.WriteString(dimStyle.Render("waiting for samples"))
		return b.String()
	}
	for _, bar := range m.bars {
		b.WriteString(renderBar(bar, 20))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderBar draws a labeled bar like "Stress  ██████░░░░ 42"
func renderBar(bar controller.MetricBar, width int) string {
	filled := int(bar.Percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	fill := lipgloss.NewStyle().Foreground(classColor(bar.Class))
	empty := lipgloss.NewStyle().Foreground(colorBarBg)
	return fmt.Sprintf("%-15s %s%s %4s",
		bar.Name,
		fill.Render(strings.Repeat("█", filled)),
		empty.Render(strings.Repeat("░", width-filled)),
		bar.Label,
	)
}

func (m Model) renderAvatar() string {
	f := m.frame
	var b strings.Builder
	b.WriteString(titleStyle.Render("Avatar"))
	b.WriteString("\n")
	if f.Avatar == scene.AvatarNone {
		b.WriteString(dimStyle.Render(f.Phase.String()))
		return b.String()
	}

	band := f.Band
	if !f.HasSample {
		band = internal.BandCalm
	}
	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#1a1b26")).
		Background(lipgloss.Color(f.Emissive.Hex())).
		Padding(0, 1).
		Render(band.Class())

	fmt.Fprintf(&b, "%s %s\n", textStyle.Render(f.Role.Title()), badge)
	fmt.Fprintf(&b, "%s model, %d meshes\n", f.Avatar, f.AvatarMeshes)
	fmt.Fprintf(&b, "glow %s @ %.3f\n", f.Emissive.Hex(), f.EmissiveIntensity)
	if f.Clip != "" {
		fmt.Fprintf(&b, "clip %s %.1fs\n", f.Clip, f.ClipTime.Seconds())
	} else if f.Avatar == scene.AvatarFallback {
		fmt.Fprintf(&b, "idle bob %+.3f\n", f.Bob)
	}
	if len(f.Environment) > 0 {
		fmt.Fprintf(&b, "env %s\n", strings.Join(f.Environment, ", "))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %dx%d · frame %d", f.Phase, f.Size.Width, f.Size.Height, f.Seq)))
	return b.String()
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("No messages yet. Start a session and press tab to chat.")
	}
	var b strings.Builder
	for _, e := range m.entries {
		switch e.Role {
		case controller.EntryUser:
			b.WriteString(userStyle.Render("You"))
		case controller.EntryAssistant:
			b.WriteString(botStyle.Render("Twin"))
		default:
			b.WriteString(systemStyle.Render("System"))
		}
		b.WriteString("\n")
		for _, seg := range e.Segments {
			b.WriteString(m.renderSegment(e.Role, seg))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderSegment(role controller.EntryRole, seg controller.Segment) string {
	if seg.Code {
		body := seg.Text
		if seg.Language != "" {
			body = dimStyle.Render(seg.Language) + "\n" + body
		}
		return codeStyle.Render(body)
	}
	text := strings.Trim(seg.Text, "\n")
	if role == controller.EntryAssistant && m.markdown != nil {
		if out, err := m.markdown.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	if role == controller.EntrySystem {
		return systemStyle.Render(text)
	}
	return textStyle.Render(text)
}
