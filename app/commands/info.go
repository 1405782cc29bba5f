package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

const infoEmbedColor = 0x3498db

// HandleInfoCommand handles the /info slash command.
func (m *commandManager) HandleInfoCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	user := interactionUser(i)

	embed := &discordgo.MessageEmbed{
		Title:       "Rules Bot Information",
		Description: "A Discord bot for reaction-based role assignment and server management",
		Color:       infoEmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Version", Value: m.version, Inline: true},
			{Name: "Uptime", Value: formatUptime(m.now().Sub(m.startedAt)), Inline: true},
			{Name: "Total Servers", Value: strconv.Itoa(len(m.session.StateGuilds())), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Requested by " + user.Username, IconURL: user.AvatarURL("")},
		Timestamp: m.now().UTC().Format(time.RFC3339),
	}

	if i.GuildID != "" {
		guild, err := m.session.Guild(i.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			m.logger.WarnContext(ctx, "Failed to load guild for /info", attr.GuildID(i.GuildID), attr.Error(err))
		} else if guild != nil {
			embed.Fields = append(embed.Fields,
				&discordgo.MessageEmbedField{Name: "Current Server", Value: guild.Name, Inline: true},
				&discordgo.MessageEmbedField{Name: "Server Members", Value: strconv.Itoa(guild.MemberCount), Inline: true},
			)
		}
		if m.status != nil {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Server Configuration",
				Value: m.status.ServerStatus(ctx, i.GuildID),
			})
		}
	}

	if err := m.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}, discordgo.WithContext(ctx)); err != nil {
		m.logger.ErrorContext(ctx, "Failed to respond to /info command",
			attr.UserID(user.ID),
			attr.GuildID(i.GuildID),
			attr.Error(err),
		)
	}
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}
