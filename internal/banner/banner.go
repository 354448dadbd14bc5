package banner

import (
	"loadq/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    __                __
   / /___  ____ _____/ /___ _
  / / __ \/ __ '/ __  / __ '/
 / / /_/ / /_/ / /_/ / /_/ /
/_/\____/\__,_/\__,_/\__, /
                       /_/   `

	return "\n" + style.Render(ascii) + "\n"
}
