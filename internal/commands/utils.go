package commands

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// ParseGuildID returns 0 for direct messages and malformed IDs.
func ParseGuildID(guildID string) int64 {
	if guildID == "" {
		return 0
	}
	id, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// InteractionUserID works for both server and DM interactions.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func getIntOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *int64 {
	for _, o := range opts {
		if o.Name == name {
			v := o.IntValue()
			return &v
		}
	}
	return nil
}
