package dropdown

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/theme"
)

// Appearance is how a notification type is drawn in the list.
type Appearance struct {
	Icon  string
	Color lipgloss.AdaptiveColor
}

// appearances covers every models.NotificationType.
var appearances = map[models.NotificationType]Appearance{
	models.TypeEventApprovalRequest:    {Icon: "⏳", Color: theme.ColorOrange},
	models.TypeEventSubmitted:          {Icon: "📝", Color: theme.ColorBlue},
	models.TypeEventApproved:           {Icon: "✔", Color: theme.ColorGreen},
	models.TypeEventRejected:           {Icon: "✖", Color: theme.ColorRed},
	models.TypeParticipationRequest:    {Icon: "🙋", Color: theme.ColorBlue},
	models.TypeParticipationAccepted:   {Icon: "✔", Color: theme.ColorGreen},
	models.TypeParticipationRejected:   {Icon: "✖", Color: theme.ColorRed},
	models.TypeVolunteerJoined:         {Icon: "👥", Color: theme.ColorBlue},
	models.TypePointsAwarded:           {Icon: "★", Color: theme.ColorYellow},
	models.TypeBadgeEarned:             {Icon: "🏅", Color: theme.ColorMagenta},
	models.TypeCertificateAwarded:      {Icon: "📜", Color: theme.ColorMagenta},
	models.TypeEventCompletionRequest:  {Icon: "⏳", Color: theme.ColorOrange},
	models.TypeEventCompletionApproved: {Icon: "✔", Color: theme.ColorGreen},
	models.TypeEventCompletionRejected: {Icon: "✖", Color: theme.ColorRed},
}

var fallbackAppearance = Appearance{Icon: "•", Color: theme.ColorGray}

// AppearanceFor returns the icon and color for t. Unknown types from a newer
// server fall back to a neutral bullet.
func AppearanceFor(t models.NotificationType) Appearance {
	if a, ok := appearances[t]; ok {
		return a
	}
	return fallbackAppearance
}

// Render draws the icon in its color.
func (a Appearance) Render() string {
	return lipgloss.NewStyle().Foreground(a.Color).Render(a.Icon)
}
