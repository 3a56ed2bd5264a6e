package domain

// Provider change types as delivered in notifications.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Batch is the provider's delivery envelope: a JSON object with a "value"
// array of individual notifications.
type Batch struct {
	Value []Envelope `json:"value"`
}

// Envelope is one change notification within a delivered batch. The provider
// sends a minimal stub; anything needed for filtering is re-fetched.
type Envelope struct {
	SubscriptionID string       `json:"subscriptionId"`
	ChangeType     string       `json:"changeType"`
	Resource       string       `json:"resource"`
	ClientState    string       `json:"clientState,omitempty"`
	TenantID       string       `json:"tenantId,omitempty"`
	ResourceData   ResourceData `json:"resourceData"`
}

// ResourceData is the minimal resource stub carried in a notification.
type ResourceData struct {
	ID        string `json:"id"`
	ODataType string `json:"@odata.type,omitempty"`
	ODataID   string `json:"@odata.id,omitempty"`
}

// LogicalResourceID returns the identity of the changed object: the
// resourceData id when present, else the resource path, else "none".
func (e Envelope) LogicalResourceID() string {
	if e.ResourceData.ID != "" {
		return e.ResourceData.ID
	}
	if e.Resource != "" {
		return e.Resource
	}
	return "none"
}
