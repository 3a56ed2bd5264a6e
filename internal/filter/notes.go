package filter

import (
	"context"
	"fmt"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

// evaluateNotes polls the most recent pages, optionally narrowed by
// notebook/section, and fires on the newest page classified as new by the
// recency heuristic. Note notifications do not identify the changed page, so
// polling is the only way to find it.
func (e *Engine) evaluateNotes(ctx context.Context, trig domain.TriggerResource) (Verdict, error) {
	cfg := trig.Config.Note
	if cfg == nil {
		cfg = &domain.NoteFilter{}
	}

	pages, err := e.api.ListNotePages(ctx, trig.UserID, cfg.SectionID, notePageLimit)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch note pages: %w", err)
	}

	now := e.clock().UTC()
	for _, page := range pages {
		if cfg.NotebookID != "" && page.ParentNotebook.ID != cfg.NotebookID {
			continue
		}
		if !isRecentNew(page.CreatedDateTime, page.LastModifiedDateTime, now) {
			continue
		}
		return Verdict{Match: true, Payload: notePayload(page)}, nil
	}

	return noMatch("no qualifying recent page"), nil
}

func notePayload(page provider.NotePage) map[string]any {
	return map[string]any{
		"id":              page.ID,
		"title":           page.Title,
		"sectionId":       page.ParentSection.ID,
		"notebookId":      page.ParentNotebook.ID,
		"createdDateTime": page.CreatedDateTime,
	}
}
