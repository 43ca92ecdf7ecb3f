package inbox

import "github.com/gen2brain/beeep"

// Notifier is the best-effort OS notification side channel for new user
// messages. No delivery guarantee; the platform or the user may refuse.
type Notifier interface {
	Notify(title, body string) error
}

// DesktopNotifier shows a native desktop notification.
type DesktopNotifier struct{}

func (DesktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, "")
}
