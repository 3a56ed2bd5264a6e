package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies what kind of change a configured trigger fires on.
type TriggerType string

const (
	TriggerMailReceived          TriggerType = "mail_received"
	TriggerCalendarEventCreated  TriggerType = "calendar_event_created"
	TriggerCalendarEventUpdated  TriggerType = "calendar_event_updated"
	TriggerCalendarEventDeleted  TriggerType = "calendar_event_deleted"
	TriggerCalendarEventStarting TriggerType = "calendar_event_starting"
	TriggerFileCreated           TriggerType = "file_created"
	TriggerFileUpdated           TriggerType = "file_updated"
	TriggerTableRowAdded         TriggerType = "table_row_added"
	TriggerTableRowUpdated       TriggerType = "table_row_updated"
	TriggerContactCreated        TriggerType = "contact_created"
	TriggerChatMessageReceived   TriggerType = "chat_message_received"
	TriggerNotePageCreated       TriggerType = "note_page_created"
)

// ResourceKind is the provider-side resource family a subscription watches.
type ResourceKind string

const (
	KindMail         ResourceKind = "mail"
	KindEvent        ResourceKind = "event"
	KindDriveItem    ResourceKind = "driveItem"
	KindTableRow     ResourceKind = "tableRow"
	KindContact      ResourceKind = "contact"
	KindChatMessage  ResourceKind = "chatMessage"
	KindNotePage     ResourceKind = "notePage"
	KindSubscription ResourceKind = "subscription"
)

var triggerKinds = map[TriggerType]ResourceKind{
	TriggerMailReceived:          KindMail,
	TriggerCalendarEventCreated:  KindEvent,
	TriggerCalendarEventUpdated:  KindEvent,
	TriggerCalendarEventDeleted:  KindEvent,
	TriggerCalendarEventStarting: KindEvent,
	TriggerFileCreated:           KindDriveItem,
	TriggerFileUpdated:           KindDriveItem,
	TriggerTableRowAdded:         KindTableRow,
	TriggerTableRowUpdated:       KindTableRow,
	TriggerContactCreated:        KindContact,
	TriggerChatMessageReceived:   KindChatMessage,
	TriggerNotePageCreated:       KindNotePage,
}

// Kind returns the resource family watched by this trigger type.
func (t TriggerType) Kind() ResourceKind {
	return triggerKinds[t]
}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	_, ok := triggerKinds[t]
	return ok
}

// TriggerResource binds a workflow trigger node to a provider push
// subscription. Rows are created by the registration flow; this engine only
// reads them, except for the table snapshot which it refreshes after a diff.
type TriggerResource struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	WorkflowID uuid.UUID
	NodeID     string

	Type           TriggerType
	Provider       string // provider family, e.g. "microsoft"
	SubscriptionID string // external subscription id
	Kind           ResourceKind

	// ClientState is the shared secret echoed back in notifications.
	ClientState string

	Config   FilterConfig
	Snapshot *TableSnapshot

	TestSessionID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FilterConfig is the per-trigger-type filter configuration. Exactly one of
// the typed sections is populated, selected by the trigger type. Extra holds
// provider fields we do not model so re-serialization never loses them.
type FilterConfig struct {
	// ChangeTypes is the allow-list of provider change types ("created",
	// "updated", "deleted"). Empty means all.
	ChangeTypes []string `json:"changeTypes,omitempty"`

	Mail     *MailFilter     `json:"mail,omitempty"`
	Calendar *CalendarFilter `json:"calendar,omitempty"`
	File     *FileFilter     `json:"file,omitempty"`
	Table    *TableFilter    `json:"table,omitempty"`
	Contact  *ContactFilter  `json:"contact,omitempty"`
	Chat     *ChatFilter     `json:"chat,omitempty"`
	Note     *NoteFilter     `json:"note,omitempty"`

	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// AllowsChangeType reports whether the configured allow-list admits ct.
func (c FilterConfig) AllowsChangeType(ct string) bool {
	if len(c.ChangeTypes) == 0 {
		return true
	}
	for _, allowed := range c.ChangeTypes {
		if allowed == ct {
			return true
		}
	}
	return false
}

type MailFilter struct {
	FolderID       string `json:"folderId,omitempty"`
	Subject        string `json:"subject,omitempty"`
	SubjectExact   bool   `json:"subjectExact,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"` // comma/semicolon-delimited allow-list
	Importance     string `json:"importance,omitempty"`
	Flagged        *bool  `json:"flagged,omitempty"`
	HasAttachment  *bool  `json:"hasAttachment,omitempty"`
	AttachmentExts string `json:"attachmentExts,omitempty"` // comma-delimited, e.g. "pdf,docx"
}

type CalendarFilter struct {
	CalendarID    string `json:"calendarId,omitempty"`
	Subject       string `json:"subject,omitempty"`
	SubjectExact  bool   `json:"subjectExact,omitempty"`
	MinutesBefore int    `json:"minutesBefore,omitempty"` // lead time for event_starting; 0 means default
}

type FileFilter struct {
	FolderID   string `json:"folderId,omitempty"`
	FolderPath string `json:"folderPath,omitempty"` // subtree scope by path prefix
	FileType   string `json:"fileType,omitempty"`   // MIME prefix ("image/") or extension ("pdf")
	SharedOnly bool   `json:"sharedOnly,omitempty"`
}

type TableFilter struct {
	WorkbookID string `json:"workbookId,omitempty"`
	TableID    string `json:"tableId,omitempty"`
}

type ContactFilter struct {
	Company string `json:"company,omitempty"`
}

type ChatFilter struct {
	TeamID    string `json:"teamId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

type NoteFilter struct {
	NotebookID string `json:"notebookId,omitempty"`
	SectionID  string `json:"sectionId,omitempty"`
}

// TableSnapshot is the persisted per-row content-hash state used to diff
// table notifications into new/changed rows.
type TableSnapshot struct {
	Headers   []string          `json:"headers"`
	RowHashes map[string]string `json:"rowHashes"` // row key -> content hash
	RowCount  int               `json:"rowCount"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
