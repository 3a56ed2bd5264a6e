package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

func (e *Engine) evaluateContact(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, cap domain.Capability) (Verdict, error) {
	if env.ResourceData.ID == "" {
		return Verdict{}, fmt.Errorf("notification carries no contact id")
	}

	contact, err := e.api.GetContact(ctx, trig.UserID, env.ResourceData.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch contact: %w", err)
	}

	if cap.CompanyName && trig.Config.Contact != nil && trig.Config.Contact.Company != "" {
		want := strings.ToLower(trig.Config.Contact.Company)
		if !strings.Contains(strings.ToLower(contact.CompanyName), want) {
			return noMatch("company mismatch"), nil
		}
	}

	return Verdict{Match: true, Payload: contactPayload(contact)}, nil
}

func contactPayload(contact provider.Contact) map[string]any {
	emails := make([]string, 0, len(contact.EmailAddresses))
	for _, e := range contact.EmailAddresses {
		emails = append(emails, e.Address)
	}
	return map[string]any{
		"id":          contact.ID,
		"displayName": contact.DisplayName,
		"companyName": contact.CompanyName,
		"emails":      emails,
	}
}
