package main

import (
	"context"
	"fmt"
	"log"
	"os"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/reactionrole"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability"
	"github.com/Black-And-White-Club/discord-rules-bot/config"
	"github.com/bwmarrin/discordgo"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "seed-reactions",
		Usage: "Add the configured reaction emoji to each server's rules message",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to the bot configuration file",
			},
			&cli.StringFlag{
				Name:    "guild",
				Aliases: []string{"g"},
				Usage:   "Only seed this guild",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be seeded without calling Discord",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, flush, err := observability.NewLogger(observability.LoggerOptions{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				ServiceName: "seed-reactions",
			})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer flush()

			rules, err := selectRules(cfg.Rules(), c.String("guild"))
			if err != nil {
				return err
			}

			if c.Bool("dry-run") {
				for _, rule := range rules {
					fmt.Printf("would seed %s in guild %s (channel %s, message %s)\n",
						rule.ReactionEmoji, rule.GuildID, rule.RulesChannelID, rule.RulesMessageID)
				}
				return nil
			}

			session, err := discordgo.New("Bot " + cfg.Discord.Token)
			if err != nil {
				return fmt.Errorf("failed to create discord session: %w", err)
			}
			ops := discord.NewOperations(discord.NewDiscordSession(session, logger), logger)

			if failed := reactionrole.NewSeeder(ops, logger).SeedAll(ctx, rules); failed > 0 {
				return fmt.Errorf("%d of %d guilds could not be seeded", failed, len(rules))
			}
			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// selectRules keeps the active rules, narrowed to guildID when one is given.
func selectRules(rules []guildconfig.GuildRule, guildID string) ([]guildconfig.GuildRule, error) {
	var out []guildconfig.GuildRule
	for _, rule := range rules {
		if guildID != "" && rule.GuildID != guildID {
			continue
		}
		if !rule.Active() {
			continue
		}
		out = append(out, rule)
	}
	if guildID != "" && len(out) == 0 {
		return nil, fmt.Errorf("guild %s has no active reaction role", guildID)
	}
	return out, nil
}
