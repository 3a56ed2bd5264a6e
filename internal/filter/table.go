package filter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

// evaluateTable fetches the full row set plus headers, diffs per-row content
// hashes against the stored snapshot, and fires on new rows (row_added) or
// changed rows (row_updated). The first-ever observation seeds the snapshot
// and never fires; re-fetching the whole table on first sight would fan out
// one execution per pre-existing row otherwise. The snapshot is refreshed
// regardless of whether this envelope matched.
func (e *Engine) evaluateTable(ctx context.Context, trig domain.TriggerResource) (Verdict, error) {
	cfg := trig.Config.Table
	if cfg == nil || cfg.WorkbookID == "" || cfg.TableID == "" {
		return noMatch("table filter not configured"), nil
	}

	rows, err := e.api.ListTableRows(ctx, trig.UserID, cfg.WorkbookID, cfg.TableID)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch table rows: %w", err)
	}
	cols, err := e.api.ListTableColumns(ctx, trig.UserID, cfg.WorkbookID, cfg.TableID)
	if err != nil {
		return Verdict{}, fmt.Errorf("fetch table columns: %w", err)
	}

	headers := make([]string, 0, len(cols))
	for _, c := range cols {
		headers = append(headers, c.Name)
	}

	current := buildSnapshot(headers, rows, e.clock().UTC())

	if trig.Snapshot == nil {
		if err := e.snapshots.UpdateTableSnapshot(ctx, trig.ID, current); err != nil {
			return Verdict{}, fmt.Errorf("seed snapshot: %w", err)
		}
		log.Printf("filter: seeded table snapshot trigger=%s rows=%d", trig.ID, current.RowCount)
		return noMatch("snapshot seeded"), nil
	}

	newRows, changedRows := diffRows(*trig.Snapshot, rows)

	// Refresh the snapshot even when nothing matched so the next diff starts
	// from current state. A refresh failure is logged, not fatal: the match
	// decision is already made.
	if err := e.snapshots.UpdateTableSnapshot(ctx, trig.ID, current); err != nil {
		log.Printf("filter: refresh table snapshot trigger=%s: %v", trig.ID, err)
	}

	var matched []provider.TableRow
	switch trig.Type {
	case domain.TriggerTableRowAdded:
		matched = newRows
	case domain.TriggerTableRowUpdated:
		matched = changedRows
	}

	if len(matched) == 0 {
		return noMatch("no new or changed rows for this trigger variant"), nil
	}

	return Verdict{Match: true, Payload: tablePayload(headers, matched)}, nil
}

// buildSnapshot derives the per-row content-hash state from the current rows.
func buildSnapshot(headers []string, rows []provider.TableRow, now time.Time) domain.TableSnapshot {
	hashes := make(map[string]string, len(rows))
	for _, row := range rows {
		hashes[rowKey(row)] = rowHash(row)
	}
	return domain.TableSnapshot{
		Headers:   headers,
		RowHashes: hashes,
		RowCount:  len(rows),
		UpdatedAt: now,
	}
}

// diffRows classifies rows against the stored snapshot: unknown key means a
// new row, a differing hash means a changed row. Diffing a snapshot against
// the rows it was built from yields nothing.
func diffRows(snap domain.TableSnapshot, rows []provider.TableRow) (newRows, changedRows []provider.TableRow) {
	for _, row := range rows {
		key := rowKey(row)
		hash := rowHash(row)
		prev, seen := snap.RowHashes[key]
		switch {
		case !seen:
			newRows = append(newRows, row)
		case prev != hash:
			changedRows = append(changedRows, row)
		}
	}
	return newRows, changedRows
}

// rowKey identifies a row across observations: the first cell value when it
// is non-empty, else the positional index.
func rowKey(row provider.TableRow) string {
	for _, cells := range row.Values {
		for _, cell := range cells {
			if s := fmt.Sprint(cell); s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return "row:" + strconv.Itoa(row.Index)
}

// rowHash is a content hash over the row's cell values.
func rowHash(row provider.TableRow) string {
	data, err := json.Marshal(row.Values)
	if err != nil {
		data = []byte(fmt.Sprint(row.Values))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func tablePayload(headers []string, rows []provider.TableRow) map[string]any {
	values := make([][][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values)
	}
	return map[string]any{
		"headers":  headers,
		"rows":     values,
		"rowCount": len(rows),
	}
}
