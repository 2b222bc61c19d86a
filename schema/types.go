package schema

// UserID identifies a user in the system.
type UserID string

// TabID identifies a navigation tab.
type TabID string

// Role is the coarse role attached to a user.
type Role string

// Permission is a single capability granted to a user.
type Permission string

// SkinPreset identifies a UI colour preset.
type SkinPreset string

// NotificationType classifies a real-time notification.
type NotificationType string

const (
	// RoleAdmin has every permission.
	RoleAdmin Role = "admin"
	// RoleManager can read and write.
	RoleManager Role = "manager"
	// RoleUser is read only.
	RoleUser Role = "user"
)

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionManage Permission = "manage"
)

const (
	NotificationUser   NotificationType = "user"
	NotificationSystem NotificationType = "system"
	NotificationTask   NotificationType = "task"
	NotificationAlert  NotificationType = "alert"
)
