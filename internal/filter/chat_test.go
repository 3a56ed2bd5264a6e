package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

func TestEvaluateChat_EnrichesWithFullMessage(t *testing.T) {
	api := newMockAPI()
	msg := provider.ChatMessage{ID: "cm-1", CreatedDateTime: testTime}
	msg.Body.Content = "hello channel"
	msg.Body.ContentType = "text"
	msg.From.User.DisplayName = "Ada"
	api.chatMsgs["cm-1"] = msg
	e := newTestEngine(api, newMockSnapshots())

	trig := trigger(domain.TriggerChatMessageReceived)
	trig.Config.Chat = &domain.ChatFilter{TeamID: "team-1", ChannelID: "chan-1"}

	v, err := e.Evaluate(context.Background(), trig, envelope("created", "cm-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Fatalf("chat message should match: %s", v.Reason)
	}
	if v.Payload["body"] != "hello channel" || v.Payload["from"] != "Ada" {
		t.Errorf("payload = %v, want enriched body and sender", v.Payload)
	}
}

func TestEvaluateChat_EnrichmentFailureProceedsWithPushedData(t *testing.T) {
	api := newMockAPI()
	api.chatErr = errors.New("throttled")
	e := newTestEngine(api, newMockSnapshots())

	trig := trigger(domain.TriggerChatMessageReceived)
	trig.Config.Chat = &domain.ChatFilter{TeamID: "team-1", ChannelID: "chan-1"}

	v, err := e.Evaluate(context.Background(), trig, envelope("created", "cm-1"))
	if err != nil {
		t.Fatalf("enrichment failure must not surface as an error: %v", err)
	}
	if !v.Match {
		t.Error("enrichment failure must still match")
	}
	if v.Payload["id"] != "cm-1" {
		t.Errorf("payload = %v, want the pushed id preserved", v.Payload)
	}
	if _, ok := v.Payload["body"]; ok {
		t.Error("payload must not carry a body the fetch never returned")
	}
}

func TestEvaluateChat_NoChannelConfigSkipsFetch(t *testing.T) {
	api := newMockAPI()
	e := newTestEngine(api, newMockSnapshots())

	v, err := e.Evaluate(context.Background(), trigger(domain.TriggerChatMessageReceived), envelope("created", "cm-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Errorf("unconfigured chat trigger should match on pushed data: %s", v.Reason)
	}
}
