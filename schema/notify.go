package schema

import "time"

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventUpdated indicates a tab was updated.
	TabEventUpdated TabEventType = "updated"
	// TabEventCleared indicates the tab list was reset to home.
	TabEventCleared TabEventType = "cleared"
)

// TabEvent represents a change to a tab or tab list.
type TabEvent struct {
	UserID    UserID
	Type      TabEventType
	Tab       TabSnapshot
	ActiveTab TabID
}

// SettingsEvent reports the settings after a change.
type SettingsEvent struct {
	UserID   UserID
	Settings UISettings
}

// Notification is a real-time message pushed to a signed-in user.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
	Link      string           `json:"link,omitempty"`
}

// NotificationEvent routes a notification to one user.
type NotificationEvent struct {
	UserID       UserID
	Notification Notification
}
