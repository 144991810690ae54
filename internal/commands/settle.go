package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/parse"
	"github.com/susu3304/splitbot/internal/settle"
)

// MessagePrefix starts an expense list in a server channel.
const MessagePrefix = "!settle"

const (
	defaultHistory = 5
	maxHistory     = 20
)

const (
	msgParseFailed = "Couldn't parse the expenses provided."
	msgTooLarge    = "Those amounts are too large to settle."
	msgNoHistory   = "No settlements have been posted in this server yet."
	msgHistoryOff  = "Settlement history is not enabled."
)

const helpText = "Send me a single message with each member on a new line, following the format `[name] [amount]`.\n" +
	"Those who did not pay, add them with 0 in amount.\n" +
	"People who paid together go on one line joined with `+`, e.g. `Ann+Ben 3000`.\n" +
	"In a server, start the message with `" + MessagePrefix + "` or use `/settle`."

// History stores and lists posted settlements.
type History interface {
	RecordSettlement(ctx context.Context, s *db.Settlement) error
	ListSettlements(ctx context.Context, guildID int64, limit int) ([]db.Settlement, error)
}

// Request identifies where an expense list came from.
type Request struct {
	GuildID   int64
	ChannelID string
	UserID    string
}

type Handler struct {
	solver   *settle.Solver
	history  History
	currency string
	logger   *zap.Logger
}

// NewHandler wires the settle commands. history may be nil.
func NewHandler(solver *settle.Solver, history History, currency string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{solver: solver, history: history, currency: currency, logger: logger}
}

// Reply parses an expense list, settles it and returns the chat reply.
func (h *Handler) Reply(ctx context.Context, text string, req Request) string {
	log := h.logger.With(
		zap.Int64("guild_id", req.GuildID),
		zap.String("channel_id", req.ChannelID),
		zap.String("user_id", req.UserID),
	)

	expenses, report, err := parse.Expenses(text)
	if errors.Is(err, settle.ErrAmountTooLarge) {
		log.Debug("amounts out of range", zap.Error(err))
		return msgTooLarge
	}
	if err != nil {
		log.Debug("could not parse expenses", zap.Error(err))
		return msgParseFailed
	}

	res, err := h.solver.Solve(ctx, expenses)
	var degenerate *settle.DegenerateInputError
	switch {
	case errors.As(err, &degenerate):
		log.Debug("degenerate expenses", zap.Error(err))
		return "Nothing to settle: " + degenerate.Reason + "."
	case errors.Is(err, settle.ErrTimeout):
		log.Warn("settlement timed out", zap.Int("participants", expenses.Len()))
	case err != nil:
		log.Error("settlement failed", zap.Error(err))
	default:
		log.Info("settled expenses",
			zap.Int("participants", expenses.Len()),
			zap.Int("skipped_lines", len(report.Rejected)),
			zap.Stringer("kind", res.Kind),
			zap.Int("transfers", len(res.Transfers)),
		)
	}

	if err == nil && h.history != nil {
		rec := db.NewSettlement(res, db.SourceDiscord, req.GuildID, req.ChannelID, req.UserID)
		if herr := h.history.RecordSettlement(ctx, rec); herr != nil {
			log.Error("failed to record settlement", zap.Error(herr))
		}
	}
	return res.Text(h.currency)
}

// HistoryText renders recent settlements for a guild.
func (h *Handler) HistoryText(ctx context.Context, guildID int64, count int) string {
	if h.history == nil {
		return msgHistoryOff
	}
	if count <= 0 {
		count = defaultHistory
	}
	count = min(count, maxHistory)

	items, err := h.history.ListSettlements(ctx, guildID, count)
	if err != nil {
		h.logger.Error("failed to list settlements", zap.Int64("guild_id", guildID), zap.Error(err))
		return "Failed to load settlement history."
	}
	if len(items) == 0 {
		return msgNoHistory
	}

	var b strings.Builder
	for _, s := range items {
		fmt.Fprintf(&b, "**%s**", s.CreatedAt.Format("2006-01-02 15:04"))
		if s.RequestedBy != "" {
			fmt.Fprintf(&b, " by <@%s>", s.RequestedBy)
		}
		b.WriteString("\n")
		if len(s.Transfers) == 0 {
			b.WriteString("No transfers needed.\n")
		}
		for _, t := range s.Transfers {
			fmt.Fprintf(&b, "%s owes %s: %s%d\n", t.From, t.To, h.currency, t.Amount)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExpensesFromMessage returns the expense list carried by a chat message.
// Direct messages are read whole; server messages need the prefix.
func ExpensesFromMessage(content string, direct bool) (string, bool) {
	content = strings.TrimSpace(content)
	if direct {
		return content, content != ""
	}
	if !strings.HasPrefix(content, MessagePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(content, MessagePrefix)
	if rest != "" && !strings.ContainsAny(rest[:1], " \t\r\n") {
		// e.g. "!settlement"
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// HandleMessage answers a DM or a prefixed server message.
func (h *Handler) HandleMessage(s MessageSender, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text, ok := ExpensesFromMessage(m.Content, m.GuildID == "")
	if !ok {
		return
	}
	ctx := context.Background()
	if text == "/start" || text == "" {
		sendChunks(ctx, s, m.ChannelID, helpText, h.logger)
		return
	}
	reply := h.Reply(ctx, text, Request{
		GuildID:   ParseGuildID(m.GuildID),
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
	})
	sendChunks(ctx, s, m.ChannelID, reply, h.logger)
}

// HandleSettle opens a modal that takes the expense list.
func (h *Handler) HandleSettle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: settleModalID,
			Title:    "Settle expenses",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    expensesInputID,
							Label:       "One line per person: name amount",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Ann 3000\nBen+Cat 4500\nDan 0",
							Required:    true,
							MaxLength:   4000,
						},
					},
				},
			},
		},
	})
	if err != nil {
		h.logger.Error("failed to open settle modal", zap.Error(err))
	}
}

// HandleModalSubmit settles the expense list typed into the modal.
func (h *Handler) HandleModalSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	if data.CustomID != settleModalID {
		return
	}
	text := modalValue(data.Components, expensesInputID)
	reply := h.Reply(context.Background(), text, Request{
		GuildID:   ParseGuildID(i.GuildID),
		ChannelID: i.ChannelID,
		UserID:    InteractionUserID(i),
	})
	h.respondChunks(s, i, reply)
}

func (h *Handler) HandleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondText(s, i, helpText)
}

func (h *Handler) HandleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	count := defaultHistory
	if opt := getIntOption(i.ApplicationCommandData().Options, "count"); opt != nil {
		count = int(*opt)
	}
	h.respondChunks(s, i, h.HistoryText(context.Background(), ParseGuildID(i.GuildID), count))
}

// respondChunks answers the interaction with the first chunk and posts the
// rest to the channel.
func (h *Handler) respondChunks(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	chunks := splitMessage(text, messageLimit)
	if len(chunks) == 0 {
		return
	}
	respondText(s, i, chunks[0])
	for _, c := range chunks[1:] {
		if err := sendWithRetry(context.Background(), s, i.ChannelID, c); err != nil {
			h.logger.Error("failed to send message", zap.String("channel_id", i.ChannelID), zap.Error(err))
			return
		}
	}
}

func modalValue(components []discordgo.MessageComponent, id string) string {
	for _, component := range components {
		if actionRow, ok := component.(*discordgo.ActionsRow); ok {
			for _, c := range actionRow.Components {
				if input, ok := c.(*discordgo.TextInput); ok && input.CustomID == id {
					return input.Value
				}
			}
		}
	}
	return ""
}
