package filter

import (
	"context"
	"testing"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

func mailMessage() provider.Message {
	return provider.Message{
		ID:             "msg-1",
		Subject:        "Quarterly report attached",
		From:           provider.Recipient{EmailAddress: provider.EmailAddress{Address: "alice@example.com"}},
		ToRecipients:   []provider.Recipient{{EmailAddress: provider.EmailAddress{Address: "bob@example.com"}}},
		Importance:     "high",
		HasAttachments: true,
		ParentFolderID: "folder-inbox",
	}
}

func mailTrigger(cfg *domain.MailFilter) domain.TriggerResource {
	trig := trigger(domain.TriggerMailReceived)
	trig.Config.Mail = cfg
	return trig
}

func TestEvaluateMail_NoFiltersMatchesInbox(t *testing.T) {
	api := newMockAPI()
	api.messages["msg-1"] = mailMessage()
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	v, err := e.Evaluate(context.Background(), mailTrigger(nil), envelope("created", "msg-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Fatalf("unfiltered inbox message should match: %s", v.Reason)
	}
	if v.Payload["subject"] != "Quarterly report attached" {
		t.Errorf("payload subject = %v", v.Payload["subject"])
	}
}

func TestEvaluateMail_DefaultFolderScopesToInbox(t *testing.T) {
	api := newMockAPI()
	msg := mailMessage()
	msg.ParentFolderID = "folder-archive"
	api.messages["msg-1"] = msg
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	v, err := e.Evaluate(context.Background(), mailTrigger(nil), envelope("created", "msg-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("message outside the inbox should not match with an unset folder filter")
	}
}

func TestEvaluateMail_SenderExactNotSubstring(t *testing.T) {
	api := newMockAPI()
	api.messages["msg-1"] = mailMessage()
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	// a@x must not pass a filter for b@x even though both share a domain.
	v, err := e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{From: "malice@example.com"}), envelope("created", "msg-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("different sender on the same domain must not match")
	}

	v, err = e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{From: "ALICE@example.com"}), envelope("created", "msg-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Errorf("sender match should be case-insensitive: %s", v.Reason)
	}
}

func TestEvaluateMail_SubjectSubstringAndExact(t *testing.T) {
	api := newMockAPI()
	api.messages["msg-1"] = mailMessage()
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	v, _ := e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{Subject: "quarterly"}), envelope("created", "msg-1"))
	if !v.Match {
		t.Errorf("substring subject should match: %s", v.Reason)
	}

	v, _ = e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{Subject: "quarterly", SubjectExact: true}), envelope("created", "msg-1"))
	if v.Match {
		t.Error("exact subject must not match a substring")
	}
}

func TestEvaluateMail_RecipientAllowList(t *testing.T) {
	api := newMockAPI()
	api.messages["msg-1"] = mailMessage()
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	v, _ := e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{To: "carol@example.com, bob@example.com"}), envelope("created", "msg-1"))
	if !v.Match {
		t.Errorf("recipient in delimited allow-list should match: %s", v.Reason)
	}

	v, _ = e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{To: "carol@example.com"}), envelope("created", "msg-1"))
	if v.Match {
		t.Error("no recipient in allow-list must not match")
	}
}

func TestEvaluateMail_AttachmentExtensions(t *testing.T) {
	api := newMockAPI()
	api.messages["msg-1"] = mailMessage()
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	api.attachments["msg-1"] = []provider.Attachment{
		{ID: "a1", Name: "report.PDF"},
		{ID: "a2", Name: "notes.txt"},
	}
	e := newTestEngine(api, newMockSnapshots())

	v, err := e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{AttachmentExts: ".pdf,.docx"}), envelope("created", "msg-1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Errorf("attachment extension should match case-insensitively: %s", v.Reason)
	}

	v, _ = e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{AttachmentExts: "xlsx"}), envelope("created", "msg-1"))
	if v.Match {
		t.Error("no attachment with allowed extension must not match")
	}
}

func TestEvaluateMail_FlaggedPredicate(t *testing.T) {
	api := newMockAPI()
	msg := mailMessage()
	msg.Flag.FlagStatus = "flagged"
	api.messages["msg-1"] = msg
	api.folders = []provider.MailFolder{{ID: "folder-inbox", DisplayName: "Inbox"}}
	e := newTestEngine(api, newMockSnapshots())

	flagged := true
	v, _ := e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{Flagged: &flagged}), envelope("created", "msg-1"))
	if !v.Match {
		t.Errorf("flagged message should match flagged=true: %s", v.Reason)
	}

	notFlagged := false
	v, _ = e.Evaluate(context.Background(), mailTrigger(&domain.MailFilter{Flagged: &notFlagged}), envelope("created", "msg-1"))
	if v.Match {
		t.Error("flagged message must not match flagged=false")
	}
}
