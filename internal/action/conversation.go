package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/world"
)

// Converse plays a conversation between the acting character and a partner
// in the same room. Replies alternate until one side ends with the end
// keyword or the reply limit is reached. Every reply is published so other
// characters in the room overhear it.
func Converse(ctx context.Context, ac *Context, partner *world.Character, opening string) (string, error) {
	limit := ac.Config.ConversationLimit
	if limit <= 0 {
		limit = DefaultConfig().ConversationLimit
	}

	publishReply(ac, ac.Character, partner, opening)

	speaker, listener := partner, ac.Character
	lastMessage := opening
	lastReply := ""

	for i := 0; i < limit; i++ {
		speakerAgent := ac.AgentFor(speaker.Name)
		if speakerAgent == nil {
			break
		}

		prompt := fmt.Sprintf(
			"You are %s in %s. %s says to you: %q. Reply in character. Say %s when you have nothing more to add.",
			speaker.Name, ac.Room.Name, listener.Name, lastMessage, endKeyword,
		)
		reply, err := speakerAgent.Invoke(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("conversation with %s: %w", partner.Name, err)
		}
		reply = unwrapReply(reply)

		done := containsEndKeyword(reply)
		reply = stripEndKeyword(reply)
		if reply != "" {
			publishReply(ac, speaker, listener, reply)
			lastReply = reply
			lastMessage = reply
		}
		if done || reply == "" {
			break
		}
		speaker, listener = listener, speaker
	}

	if lastReply == "" {
		return fmt.Sprintf("%s does not respond.", partner.Name), nil
	}
	return fmt.Sprintf("%s replies: %s", partner.Name, lastReply), nil
}

// unwrapReply recovers the spoken text when an agent answers a
// conversation with a tool call instead of plain speech.
func unwrapReply(reply string) string {
	call, err := ParseCall(reply)
	if err != nil {
		return reply
	}
	for _, key := range []string{"message", "question", "text"} {
		if text := call.Params.StringOr(key, ""); text != "" {
			return text
		}
	}
	return reply
}

func publishReply(ac *Context, from, to *world.Character, text string) {
	if ac.Bus == nil {
		return
	}
	ac.Bus.Publish(event.NewReplyEvent(ac.Turn, from.Name, ac.Room.Name, to.Name, text))
}

func containsEndKeyword(text string) bool {
	for _, field := range strings.Fields(text) {
		if strings.Trim(field, ".,!?") == endKeyword {
			return true
		}
	}
	return false
}

func stripEndKeyword(text string) string {
	fields := strings.Fields(text)
	var kept []string
	for _, field := range fields {
		if strings.Trim(field, ".,!?") == endKeyword {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}
