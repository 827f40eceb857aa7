package service

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is the short user-facing message attached to every cart and
// checkout result.
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

func Success(message string) *Notification {
	return &Notification{Type: NotificationSuccess, Message: message}
}

func Warning(message string) *Notification {
	return &Notification{Type: NotificationWarning, Message: message}
}

// Failure builds the error notification shown for a rejected operation.
func Failure(message string) *Notification {
	return &Notification{Type: NotificationError, Message: message}
}
