package commands

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Discord rejects messages longer than this.
const messageLimit = 2000

// MessageSender is the part of a discord session used to post plain messages.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func sendChunks(ctx context.Context, s MessageSender, channelID, text string, logger *zap.Logger) {
	for _, c := range splitMessage(text, messageLimit) {
		if err := sendWithRetry(ctx, s, channelID, c); err != nil {
			logger.Error("failed to send message", zap.String("channel_id", channelID), zap.Error(err))
			return
		}
	}
}

func sendWithRetry(ctx context.Context, s MessageSender, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := s.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// splitMessage breaks text into chunks of at most limit bytes, cutting at
// line breaks. A single line longer than limit is cut hard.
func splitMessage(text string, limit int) []string {
	var chunks []string
	var buffer strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if buffer.Len() > 0 {
				chunks = append(chunks, buffer.String())
				buffer.Reset()
			}
			cut := runeCut(line, limit)
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if buffer.Len() > 0 && buffer.Len()+len(line)+1 > limit {
			chunks = append(chunks, buffer.String())
			buffer.Reset()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
	}
	if strings.TrimSpace(buffer.String()) != "" {
		chunks = append(chunks, buffer.String())
	}
	return chunks
}

// runeCut returns the largest index <= limit that starts a rune. A single
// rune wider than limit is kept whole.
func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}
