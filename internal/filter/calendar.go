package filter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

// changeForType maps an event trigger variant to the change types it fires
// on. The relative-time variant observes every change so the projector can
// keep its schedule row correct.
func changeForType(t domain.TriggerType, changeType string) bool {
	switch t {
	case domain.TriggerCalendarEventCreated:
		return changeType == domain.ChangeCreated
	case domain.TriggerCalendarEventUpdated:
		return changeType == domain.ChangeUpdated
	case domain.TriggerCalendarEventDeleted:
		return changeType == domain.ChangeDeleted
	case domain.TriggerCalendarEventStarting:
		return true
	}
	return false
}

func (e *Engine) evaluateCalendar(ctx context.Context, trig domain.TriggerResource, env domain.Envelope, cap domain.Capability) (Verdict, error) {
	eventID := env.ResourceData.ID
	if eventID == "" {
		return Verdict{}, fmt.Errorf("notification carries no event id")
	}

	if !changeForType(trig.Type, env.ChangeType) {
		return noMatch("change type " + env.ChangeType + " not relevant for " + string(trig.Type)), nil
	}

	cfg := trig.Config.Calendar
	if cfg == nil {
		cfg = &domain.CalendarFilter{}
	}

	if cap.CalendarID && cfg.CalendarID != "" {
		// The event fetch does not expose its parent calendar; the
		// subscription's resource path does.
		if !strings.Contains(env.Resource, cfg.CalendarID) {
			return noMatch("calendar mismatch"), nil
		}
	}

	if env.ChangeType == domain.ChangeDeleted {
		detail := &EventDetail{EventID: eventID, Deleted: true}
		if trig.Type == domain.TriggerCalendarEventDeleted {
			return Verdict{
				Match:   true,
				Payload: map[string]any{"id": eventID, "deleted": true},
				Event:   detail,
			}, nil
		}
		return Verdict{Match: false, Reason: "event deleted", Event: detail}, nil
	}

	ev, err := e.api.GetEvent(ctx, trig.UserID, eventID)
	if err != nil {
		if provider.NotFound(err) {
			// Gone between push and fetch; treat as a deletion.
			return Verdict{Match: false, Reason: "event no longer exists", Event: &EventDetail{EventID: eventID, Deleted: true}}, nil
		}
		return Verdict{}, fmt.Errorf("fetch event: %w", err)
	}

	detail := &EventDetail{EventID: ev.ID, Start: parseEventTime(ev.Start), Deleted: ev.IsCancelled}

	if ev.IsCancelled {
		return Verdict{Match: false, Reason: "event cancelled", Event: detail}, nil
	}

	if cap.Subject && !matchSubject(ev.Subject, cfg.Subject, cfg.SubjectExact) {
		return Verdict{Match: false, Reason: "subject mismatch", Event: detail}, nil
	}

	return Verdict{Match: true, Payload: eventPayload(ev), Event: detail}, nil
}

// parseEventTime converts the provider's split timestamp to UTC. Unparseable
// input yields the zero time; callers treat that as unknown.
func parseEventTime(dtz provider.DateTimeTimeZone) time.Time {
	if dtz.DateTime == "" {
		return time.Time{}
	}

	loc := time.UTC
	if dtz.TimeZone != "" {
		if l, err := time.LoadLocation(dtz.TimeZone); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.9999999",
		"2006-01-02T15:04:05",
		time.RFC3339,
	} {
		if t, err := time.ParseInLocation(layout, dtz.DateTime, loc); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func eventPayload(ev provider.Event) map[string]any {
	return map[string]any{
		"id":        ev.ID,
		"subject":   ev.Subject,
		"start":     ev.Start.DateTime,
		"end":       ev.End.DateTime,
		"location":  ev.Location.DisplayName,
		"organizer": ev.Organizer.EmailAddress.Address,
	}
}
