package provider

import "time"

type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type Message struct {
	ID               string      `json:"id"`
	Subject          string      `json:"subject"`
	BodyPreview      string      `json:"bodyPreview,omitempty"`
	From             Recipient   `json:"from"`
	ToRecipients     []Recipient `json:"toRecipients,omitempty"`
	Importance       string      `json:"importance,omitempty"` // low | normal | high
	HasAttachments   bool        `json:"hasAttachments"`
	ParentFolderID   string      `json:"parentFolderId,omitempty"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
	Flag             struct {
		FlagStatus string `json:"flagStatus,omitempty"` // notFlagged | flagged | complete
	} `json:"flag"`
}

type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type MailFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// DateTimeTimeZone is the provider's split timestamp representation for
// calendar events.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type Event struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	Start       DateTimeTimeZone `json:"start"`
	End         DateTimeTimeZone `json:"end"`
	IsCancelled bool             `json:"isCancelled,omitempty"`
	Organizer   Recipient        `json:"organizer"`
	Location    struct {
		DisplayName string `json:"displayName,omitempty"`
	} `json:"location"`
}

type Contact struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"displayName"`
	CompanyName    string         `json:"companyName,omitempty"`
	EmailAddresses []EmailAddress `json:"emailAddresses,omitempty"`
}

type DriveItem struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Size                 int64     `json:"size,omitempty"`
	WebURL               string    `json:"webUrl,omitempty"`
	CreatedDateTime      time.Time `json:"createdDateTime"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`

	File *struct {
		MimeType string `json:"mimeType,omitempty"`
	} `json:"file,omitempty"`
	Folder *struct {
		ChildCount int `json:"childCount,omitempty"`
	} `json:"folder,omitempty"`
	Shared *struct {
		Scope string `json:"scope,omitempty"`
	} `json:"shared,omitempty"`
	ParentReference struct {
		ID   string `json:"id,omitempty"`
		Path string `json:"path,omitempty"`
	} `json:"parentReference"`
}

// IsFolder reports whether the item is a folder rather than a file.
func (d DriveItem) IsFolder() bool {
	return d.Folder != nil
}

type TableRow struct {
	Index  int     `json:"index"`
	Values [][]any `json:"values"`
}

type TableColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChatMessage struct {
	ID              string    `json:"id"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	From            struct {
		User struct {
			ID          string `json:"id,omitempty"`
			DisplayName string `json:"displayName,omitempty"`
		} `json:"user"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType,omitempty"`
		Content     string `json:"content,omitempty"`
	} `json:"body"`
}

type NotePage struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	CreatedDateTime      time.Time `json:"createdDateTime"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
	ParentSection        struct {
		ID string `json:"id,omitempty"`
	} `json:"parentSection"`
	ParentNotebook struct {
		ID string `json:"id,omitempty"`
	} `json:"parentNotebook"`
}
