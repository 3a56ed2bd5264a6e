package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

// evaluateMail AND-combines every mail predicate enabled in the capability
// descriptor against the freshly fetched message.
func (e *Engine) evaluateMail(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, cap domain.Capability) (Verdict, error) {
	if env.ResourceData.ID == "" {
		return Verdict{}, fmt.Errorf("notification carries no message id")
	}

	msg, err := e.api.GetMessage(ctx, trig.UserID, env.ResourceData.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch message: %w", err)
	}

	cfg := trig.Config.Mail
	if cfg == nil {
		cfg = &domain.MailFilter{}
	}

	if cap.Folder {
		wantFolder := cfg.FolderID
		if wantFolder == "" && cap.DefaultFolder {
			wantFolder, err = e.defaultMailFolder(ctx, trig)
			if err != nil {
				return Verdict{}, err
			}
		}
		if wantFolder != "" && msg.ParentFolderID != wantFolder {
			return noMatch("message not in configured folder"), nil
		}
	}

	if cap.Subject && !matchSubject(msg.Subject, cfg.Subject, cfg.SubjectExact) {
		return noMatch("subject mismatch"), nil
	}

	if cap.Sender && cfg.From != "" {
		if !strings.EqualFold(msg.From.EmailAddress.Address, cfg.From) {
			return noMatch("sender mismatch"), nil
		}
	}

	if cap.Recipient && cfg.To != "" {
		if !recipientAllowed(msg.ToRecipients, splitList(cfg.To)) {
			return noMatch("no recipient in allow-list"), nil
		}
	}

	if cap.Importance && cfg.Importance != "" {
		if !strings.EqualFold(msg.Importance, cfg.Importance) {
			return noMatch("importance mismatch"), nil
		}
	}

	if cap.Flagged && cfg.Flagged != nil {
		flagged := strings.EqualFold(msg.Flag.FlagStatus, "flagged")
		if flagged != *cfg.Flagged {
			return noMatch("flagged state mismatch"), nil
		}
	}

	if cap.HasAttachment && cfg.HasAttachment != nil {
		if msg.HasAttachments != *cfg.HasAttachment {
			return noMatch("attachment presence mismatch"), nil
		}
	}

	if cap.AttachmentExt {
		exts := splitList(cfg.AttachmentExts)
		if len(exts) > 0 {
			if !msg.HasAttachments {
				return noMatch("no attachments"), nil
			}
			atts, err := e.api.ListMessageAttachments(ctx, trig.UserID, msg.ID)
			if err != nil {
				return Verdict{}, fmt.Errorf("fetch attachments: %w", err)
			}
			if !attachmentExtAllowed(atts, exts) {
				return noMatch("no attachment with allowed extension"), nil
			}
		}
	}

	return Verdict{Match: true, Payload: mailPayload(msg)}, nil
}

// defaultMailFolder resolves the provider's default inbox folder id.
// An unset folder filter scopes to the inbox, not to the whole mailbox.
func (e *Engine) defaultMailFolder(ctx context.Context, trig domain.TriggerResource) (string, error) {
	folders, err := e.api.ListMailFolders(ctx, trig.UserID)
	if err != nil {
		return "", fmt.Errorf("fetch folder list: %w", err)
	}
	for _, f := range folders {
		if strings.EqualFold(f.DisplayName, "Inbox") {
			return f.ID, nil
		}
	}
	// No recognizable inbox: leave the folder unconstrained.
	return "", nil
}

func recipientAllowed(recipients []provider.Recipient, allow []string) bool {
	for _, r := range recipients {
		for _, a := range allow {
			if strings.EqualFold(r.EmailAddress.Address, a) {
				return true
			}
		}
	}
	return false
}

func attachmentExtAllowed(atts []provider.Attachment, exts []string) bool {
	for _, att := range atts {
		got := extOf(att.Name)
		for _, want := range exts {
			if got == strings.ToLower(strings.TrimPrefix(want, ".")) {
				return true
			}
		}
	}
	return false
}

func mailPayload(msg provider.Message) map[string]any {
	to := make([]string, 0, len(msg.ToRecipients))
	for _, r := range msg.ToRecipients {
		to = append(to, r.EmailAddress.Address)
	}
	return map[string]any{
		"id":               msg.ID,
		"subject":          msg.Subject,
		"from":             msg.From.EmailAddress.Address,
		"to":               to,
		"bodyPreview":      msg.BodyPreview,
		"importance":       msg.Importance,
		"hasAttachments":   msg.HasAttachments,
		"receivedDateTime": msg.ReceivedDateTime,
	}
}
