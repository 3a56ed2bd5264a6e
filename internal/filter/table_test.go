package filter

import (
	"context"
	"testing"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/provider"
)

func tableTrigger(t domain.TriggerType) domain.TriggerResource {
	trig := trigger(t)
	trig.Config.Table = &domain.TableFilter{WorkbookID: "wb-1", TableID: "tbl-1"}
	return trig
}

func tableAPI(rows []provider.TableRow) *mockAPI {
	api := newMockAPI()
	api.tableRows = rows
	api.tableCols = []provider.TableColumn{{ID: "c1", Name: "Name"}, {ID: "c2", Name: "Amount"}}
	return api
}

func TestEvaluateTable_FirstObservationSeedsWithoutFiring(t *testing.T) {
	rows := []provider.TableRow{
		{Index: 0, Values: [][]any{{"alice", 10.0}}},
		{Index: 1, Values: [][]any{{"bob", 20.0}}},
	}
	api := tableAPI(rows)
	snaps := newMockSnapshots()
	e := newTestEngine(api, snaps)

	trig := tableTrigger(domain.TriggerTableRowAdded)
	v, err := e.Evaluate(context.Background(), trig, envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("seeding observation must never fire")
	}

	snap, ok := snaps.get(trig.ID)
	if !ok {
		t.Fatal("seeding observation must store a snapshot")
	}
	if snap.RowCount != 2 {
		t.Errorf("seeded RowCount = %d, want 2", snap.RowCount)
	}
	if len(snap.RowHashes) != 2 {
		t.Errorf("seeded hash count = %d, want 2", len(snap.RowHashes))
	}
	if len(snap.Headers) != 2 || snap.Headers[0] != "Name" {
		t.Errorf("seeded headers = %v", snap.Headers)
	}
}

func TestEvaluateTable_NewRowFiresAddedVariant(t *testing.T) {
	oldRows := []provider.TableRow{{Index: 0, Values: [][]any{{"alice", 10.0}}}}
	newRows := append(oldRows, provider.TableRow{Index: 1, Values: [][]any{{"bob", 20.0}}})

	api := tableAPI(newRows)
	snaps := newMockSnapshots()
	e := newTestEngine(api, snaps)

	trig := tableTrigger(domain.TriggerTableRowAdded)
	prior := buildSnapshot([]string{"Name", "Amount"}, oldRows, testTime)
	trig.Snapshot = &prior

	v, err := e.Evaluate(context.Background(), trig, envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Fatalf("new row should fire row_added: %s", v.Reason)
	}
	if v.Payload["rowCount"] != 1 {
		t.Errorf("payload rowCount = %v, want 1 new row", v.Payload["rowCount"])
	}

	// The snapshot must advance so a redelivery diffs clean.
	snap, _ := snaps.get(trig.ID)
	if snap.RowCount != 2 {
		t.Errorf("refreshed RowCount = %d, want 2", snap.RowCount)
	}
}

func TestEvaluateTable_ChangedRowFiresUpdatedVariantOnly(t *testing.T) {
	oldRows := []provider.TableRow{{Index: 0, Values: [][]any{{"alice", 10.0}}}}
	changedRows := []provider.TableRow{{Index: 0, Values: [][]any{{"alice", 99.0}}}}

	prior := buildSnapshot([]string{"Name", "Amount"}, oldRows, testTime)

	addTrig := tableTrigger(domain.TriggerTableRowAdded)
	addTrig.Snapshot = &prior
	e := newTestEngine(tableAPI(changedRows), newMockSnapshots())

	v, err := e.Evaluate(context.Background(), addTrig, envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("changed row must not fire the row_added variant")
	}

	updTrig := tableTrigger(domain.TriggerTableRowUpdated)
	updTrig.Snapshot = &prior
	e = newTestEngine(tableAPI(changedRows), newMockSnapshots())

	v, err = e.Evaluate(context.Background(), updTrig, envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !v.Match {
		t.Errorf("changed row should fire row_updated: %s", v.Reason)
	}
}

func TestEvaluateTable_UnchangedRowsStaySilent(t *testing.T) {
	rows := []provider.TableRow{{Index: 0, Values: [][]any{{"alice", 10.0}}}}
	prior := buildSnapshot([]string{"Name", "Amount"}, rows, testTime)

	trig := tableTrigger(domain.TriggerTableRowAdded)
	trig.Snapshot = &prior
	e := newTestEngine(tableAPI(rows), newMockSnapshots())

	v, err := e.Evaluate(context.Background(), trig, envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("identical table state must not fire")
	}
}

func TestEvaluateTable_UnconfiguredSkips(t *testing.T) {
	e := newTestEngine(newMockAPI(), newMockSnapshots())

	v, err := e.Evaluate(context.Background(), trigger(domain.TriggerTableRowAdded), envelope("updated", ""))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if v.Match {
		t.Error("table trigger without workbook/table config must not fire")
	}
}

func TestDiffRows_SelfDiffIsEmpty(t *testing.T) {
	rows := []provider.TableRow{
		{Index: 0, Values: [][]any{{"alice", 10.0}}},
		{Index: 1, Values: [][]any{{"bob", 20.0}}},
	}
	snap := buildSnapshot([]string{"Name", "Amount"}, rows, testTime)

	newRows, changedRows := diffRows(snap, rows)
	if len(newRows) != 0 || len(changedRows) != 0 {
		t.Errorf("diffing a snapshot against its own rows yielded new=%d changed=%d", len(newRows), len(changedRows))
	}
}

func TestRowKey_FallsBackToIndex(t *testing.T) {
	row := provider.TableRow{Index: 3, Values: [][]any{{"", nil}}}
	if got := rowKey(row); got != "row:3" {
		t.Errorf("rowKey = %q, want row:3", got)
	}
}
