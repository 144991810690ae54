package commands

import "github.com/bwmarrin/discordgo"

const (
	CommandSettle  = "settle"
	CommandHelp    = "help"
	CommandHistory = "history"

	settleModalID   = "settle_modal"
	expensesInputID = "expenses"
)

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandSettle,
			Description: "Enter who paid what and get the fewest transfers to even it out",
		},
		{
			Name:        CommandHelp,
			Description: "Explain the expense list format",
		},
		{
			Name:         CommandHistory,
			Description:  "Show recent settlements in this server",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many settlements to show (default 5)",
					Required:    false,
					MinValue:    floatPtr(1),
					MaxValue:    maxHistory,
				},
			},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func floatPtr(f float64) *float64 {
	return &f
}
