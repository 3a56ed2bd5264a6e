package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

// evaluateFile resolves the changed drive item, or scans a bounded batch of
// recently changed items when the subscription only covers the drive root,
// and applies folder scoping, type classification, the new-vs-updated
// recency heuristic, and the shared-only predicate.
func (e *Engine) evaluateFile(ctx context.Context, trig domain.TriggerResource, env domain.Envelope) (Verdict, error) {
	var candidates []provider.DriveItem

	if env.ResourceData.ID != "" {
		item, err := e.api.GetDriveItem(ctx, trig.UserID, env.ResourceData.ID)
		if err != nil {
			return Verdict{}, fmt.Errorf("fetch drive item: %w", err)
		}
		candidates = []provider.DriveItem{item}
	} else {
		items, err := e.api.ListRecentDriveItems(ctx, trig.UserID, deltaScanLimit)
		if err != nil {
			return Verdict{}, fmt.Errorf("scan recent drive items: %w", err)
		}
		candidates = items
	}

	cfg := trig.Config.File
	if cfg == nil {
		cfg = &domain.FileFilter{}
	}

	now := e.clock().UTC()
	wantNew := trig.Type == domain.TriggerFileCreated

	for _, item := range candidates {
		if item.IsFolder() {
			continue
		}
		if !fileInScope(item, cfg) {
			continue
		}
		if !fileTypeMatches(item, cfg.FileType) {
			continue
		}
		if cfg.SharedOnly && item.Shared == nil {
			continue
		}
		if isRecentNew(item.CreatedDateTime, item.LastModifiedDateTime, now) != wantNew {
			continue
		}
		return Verdict{Match: true, Payload: filePayload(item)}, nil
	}

	return noMatch("no qualifying drive item"), nil
}

// fileInScope applies folder scoping: exact parent id, or subtree membership
// by path prefix.
func fileInScope(item provider.DriveItem, cfg *domain.FileFilter) bool {
	if cfg.FolderID != "" && item.ParentReference.ID != cfg.FolderID {
		return false
	}
	if cfg.FolderPath != "" {
		parent := strings.ToLower(item.ParentReference.Path)
		want := strings.ToLower(cfg.FolderPath)
		if !strings.HasPrefix(parent, want) {
			return false
		}
	}
	return true
}

// fileTypeMatches classifies by MIME prefix when the filter contains a "/",
// otherwise by filename extension.
func fileTypeMatches(item provider.DriveItem, fileType string) bool {
	if fileType == "" {
		return true
	}
	if strings.Contains(fileType, "/") {
		if item.File == nil {
			return false
		}
		return strings.HasPrefix(strings.ToLower(item.File.MimeType), strings.ToLower(fileType))
	}
	return extOf(item.Name) == strings.ToLower(strings.TrimPrefix(fileType, "."))
}

func filePayload(item provider.DriveItem) map[string]any {
	p := map[string]any{
		"id":                   item.ID,
		"name":                 item.Name,
		"size":                 item.Size,
		"webUrl":               item.WebURL,
		"parentPath":           item.ParentReference.Path,
		"createdDateTime":      item.CreatedDateTime,
		"lastModifiedDateTime": item.LastModifiedDateTime,
	}
	if item.File != nil {
		p["mimeType"] = item.File.MimeType
	}
	return p
}
