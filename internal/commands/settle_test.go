package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/settle"
)

const scenario = "P1 40967\nP2+P3 40967\nP4+P5 40967\nP6 12000\nP7 0"

type fakeHistory struct {
	mu       sync.Mutex
	recorded []*db.Settlement
	listed   []db.Settlement
	limit    int
	err      error
}

func (f *fakeHistory) RecordSettlement(_ context.Context, s *db.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, s)
	return nil
}

func (f *fakeHistory) ListSettlements(_ context.Context, _ int64, limit int) ([]db.Settlement, error) {
	f.limit = limit
	return f.listed, f.err
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func newTestHandler(history History) *Handler {
	solver := settle.NewSolver(settle.Options{Timeout: 5 * time.Second})
	return NewHandler(solver, history, "$", nil)
}

func TestReplyScenario(t *testing.T) {
	history := &fakeHistory{}
	h := newTestHandler(history)

	reply := h.Reply(context.Background(), scenario, Request{GuildID: 7, ChannelID: "c", UserID: "u"})

	require.True(t, strings.HasPrefix(reply, "**Debts:**\n\n"), reply)
	assert.Equal(t, 4, strings.Count(reply, " owes "))
	require.Len(t, history.recorded, 1)
	rec := history.recorded[0]
	assert.EqualValues(t, 7, rec.GuildID)
	assert.Equal(t, "u", rec.RequestedBy)
	assert.Equal(t, db.SourceDiscord, rec.Source)
	assert.Len(t, rec.Transfers, 4)
}

func TestReplyUnparsable(t *testing.T) {
	history := &fakeHistory{}
	h := newTestHandler(history)

	assert.Equal(t, msgParseFailed, h.Reply(context.Background(), "hello there\nno numbers", Request{}))
	assert.Empty(t, history.recorded)
}

func TestReplyNegativeAmountRejected(t *testing.T) {
	h := newTestHandler(nil)
	reply := h.Reply(context.Background(), "A+B+C -1", Request{})
	assert.Equal(t, msgParseFailed, reply)
}

func TestReplyAmountTooLarge(t *testing.T) {
	history := &fakeHistory{}
	h := newTestHandler(history)

	for _, text := range []string{
		"Alice 99999999999999999999\nBob 0",
		"Alice 9007199254740992\nBob 1",
	} {
		assert.Equal(t, msgTooLarge, h.Reply(context.Background(), text, Request{}))
	}
	assert.Empty(t, history.recorded)
}

func TestReplyBalanced(t *testing.T) {
	h := newTestHandler(nil)
	reply := h.Reply(context.Background(), "Alice 500\nBob 500", Request{})
	assert.Equal(t, settle.MessageBalanced, reply)
}

func TestReplyHistoryErrorStillReplies(t *testing.T) {
	h := newTestHandler(&fakeHistory{err: errors.New("db down")})
	reply := h.Reply(context.Background(), "Alice 100\nBob 0", Request{GuildID: 1})
	assert.Equal(t, "**Debts:**\n\nBob owes Alice: $50", reply)
}

func TestHistoryText(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		assert.Equal(t, msgHistoryOff, newTestHandler(nil).HistoryText(context.Background(), 1, 5))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, msgNoHistory, newTestHandler(&fakeHistory{}).HistoryText(context.Background(), 1, 5))
	})

	t.Run("clamps count", func(t *testing.T) {
		history := &fakeHistory{}
		h := newTestHandler(history)
		h.HistoryText(context.Background(), 1, 500)
		assert.Equal(t, maxHistory, history.limit)
		h.HistoryText(context.Background(), 1, 0)
		assert.Equal(t, defaultHistory, history.limit)
	})

	t.Run("renders", func(t *testing.T) {
		history := &fakeHistory{listed: []db.Settlement{
			{
				RequestedBy: "42",
				CreatedAt:   time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC),
				Transfers:   []settle.Transfer{{From: "Bob", To: "Alice", Amount: 50}},
			},
			{
				CreatedAt: time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC),
				Transfers: []settle.Transfer{},
			},
		}}
		text := newTestHandler(history).HistoryText(context.Background(), 1, 5)
		assert.Equal(t,
			"**2024-05-01 18:30** by <@42>\nBob owes Alice: $50\n\n**2024-04-30 09:00**\nNo transfers needed.",
			text)
	})
}

func TestExpensesFromMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		direct  bool
		want    string
		ok      bool
	}{
		{"dm whole message", "Alice 100\nBob 0", true, "Alice 100\nBob 0", true},
		{"dm empty", "   ", true, "", false},
		{"guild without prefix", "Alice 100", false, "", false},
		{"guild prefix newline", "!settle\nAlice 100\nBob 0", false, "Alice 100\nBob 0", true},
		{"guild prefix space", "!settle Alice 100", false, "Alice 100", true},
		{"guild bare prefix", "!settle", false, "", true},
		{"guild other command", "!settlement", false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExpensesFromMessage(tt.content, tt.direct)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleMessage(t *testing.T) {
	h := newTestHandler(nil)

	t.Run("ignores bots", func(t *testing.T) {
		s := &fakeSender{}
		h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:  &discordgo.User{ID: "b", Bot: true},
			Content: "Alice 100",
		}})
		assert.Empty(t, s.sent)
	})

	t.Run("dm settles", func(t *testing.T) {
		s := &fakeSender{}
		h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:    &discordgo.User{ID: "u"},
			ChannelID: "dm",
			Content:   "Alice 100\nBob 0",
		}})
		assert.Equal(t, []string{"**Debts:**\n\nBob owes Alice: $50"}, s.sent)
	})

	t.Run("start shows help", func(t *testing.T) {
		s := &fakeSender{}
		h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:  &discordgo.User{ID: "u"},
			Content: "/start",
		}})
		assert.Equal(t, []string{helpText}, s.sent)
	})

	t.Run("guild needs prefix", func(t *testing.T) {
		s := &fakeSender{}
		h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:  &discordgo.User{ID: "u"},
			GuildID: "123",
			Content: "Alice 100\nBob 0",
		}})
		assert.Empty(t, s.sent)
	})

	t.Run("send failure stops", func(t *testing.T) {
		s := &fakeSender{err: errors.New("forbidden")}
		h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:  &discordgo.User{ID: "u"},
			Content: "Alice 100\nBob 0",
		}})
		assert.Empty(t, s.sent)
	})
}

func TestModalValue(t *testing.T) {
	components := []discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: "other", Value: "x"},
			&discordgo.TextInput{CustomID: expensesInputID, Value: "Alice 100"},
		}},
	}
	assert.Equal(t, "Alice 100", modalValue(components, expensesInputID))
	assert.Empty(t, modalValue(components, "missing"))
}

func TestGetCommands(t *testing.T) {
	var names []string
	for _, c := range GetCommands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{CommandSettle, CommandHelp, CommandHistory}, names)
}
