package domain

// Capability declares which filter dimensions apply to a trigger type.
// The filter engine consults only dimensions enabled here; a config field
// for a disabled dimension is ignored.
type Capability struct {
	Folder        bool
	DefaultFolder bool // an unset folder resolves to the provider default
	Sender        bool
	Recipient     bool
	Subject       bool
	Importance    bool
	Flagged       bool
	HasAttachment bool
	AttachmentExt bool
	CalendarID    bool
	CompanyName   bool
}

var capabilities = map[TriggerType]Capability{
	TriggerMailReceived: {
		Folder: true, DefaultFolder: true,
		Sender: true, Recipient: true, Subject: true,
		Importance: true, Flagged: true,
		HasAttachment: true, AttachmentExt: true,
	},
	TriggerCalendarEventCreated:  {Subject: true, CalendarID: true},
	TriggerCalendarEventUpdated:  {Subject: true, CalendarID: true},
	TriggerCalendarEventDeleted:  {CalendarID: true},
	TriggerCalendarEventStarting: {Subject: true, CalendarID: true},
	TriggerFileCreated:           {Folder: true},
	TriggerFileUpdated:           {Folder: true},
	TriggerTableRowAdded:         {},
	TriggerTableRowUpdated:       {},
	TriggerContactCreated:        {CompanyName: true},
	TriggerChatMessageReceived:   {},
	TriggerNotePageCreated:       {Folder: true},
}

// CapabilityFor returns the capability descriptor for a trigger type.
// The second return is false for unknown types.
func CapabilityFor(t TriggerType) (Capability, bool) {
	c, ok := capabilities[t]
	return c, ok
}
