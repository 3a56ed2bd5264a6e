package filter

import (
	"context"
	"log"

	"github.com/chainreact/pushgate/internal/domain"
)

// evaluateChat has no hard filters; the full-message fetch is pure
// enrichment, so a failed fetch proceeds with the minimal pushed data rather
// than blocking execution.
func (e *Engine) evaluateChat(ctx context.Context, trig domain.TriggerResource, env domain.Envelope) (Verdict, error) {
	payload := map[string]any{
		"id":       env.ResourceData.ID,
		"resource": env.Resource,
	}

	cfg := trig.Config.Chat
	if cfg == nil || cfg.TeamID == "" || cfg.ChannelID == "" || env.ResourceData.ID == "" {
		return Verdict{Match: true, Payload: payload}, nil
	}

	msg, err := e.api.GetChatMessage(ctx, trig.UserID, cfg.TeamID, cfg.ChannelID, env.ResourceData.ID)
	if err != nil {
		log.Printf("filter: chat message enrichment failed trigger=%s, proceeding with pushed data: %v", trig.ID, err)
		return Verdict{Match: true, Payload: payload}, nil
	}

	payload["body"] = msg.Body.Content
	payload["contentType"] = msg.Body.ContentType
	payload["from"] = msg.From.User.DisplayName
	payload["fromUserId"] = msg.From.User.ID
	payload["createdDateTime"] = msg.CreatedDateTime
	return Verdict{Match: true, Payload: payload}, nil
}
