package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/splitbot/internal/commands"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("connected to discord", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		b.registerGuildCommands(s, guild.ID)
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.logger.Debug("guild available", zap.String("guild", event.Name), zap.String("guild_id", event.ID))
	b.registerGuildCommands(s, event.ID)
}

func (b *Bot) registerGuildCommands(s *discordgo.Session, guildID string) {
	// Replaces whatever was registered before
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, commands.GetCommands())
	if err != nil {
		b.logger.Error("failed to register commands", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	b.logger.Debug("registered application commands", zap.String("guild_id", guildID))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	b.handler.HandleMessage(s, m)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(s, i)
	case discordgo.InteractionModalSubmit:
		b.handler.HandleModalSubmit(s, i)
	}
}

func (b *Bot) handleApplicationCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case commands.CommandSettle:
		b.handler.HandleSettle(s, i)
	case commands.CommandHelp:
		b.handler.HandleHelp(s, i)
	case commands.CommandHistory:
		b.handler.HandleHistory(s, i)
	}
}
