package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"notionx/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name=notionx", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("notionx").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// Notifier reports save outcomes on the terminal and, when enabled, on the desktop
type Notifier struct {
	sender     NotificationSender
	console    bool
	onComplete bool
	onError    bool
}

// NewNotifier creates a Notifier for the current platform that reports everything
func NewNotifier() *Notifier {
	return &Notifier{sender: platformSender(), console: true, onComplete: true, onError: true}
}

// NewNotifierFromConfig creates a Notifier honoring the notification settings.
// Type "terminal" prints only, "desktop" also sends desktop notifications,
// "none" or a disabled config stays silent.
func NewNotifierFromConfig(cfg config.NotificationConfig) *Notifier {
	n := &Notifier{onComplete: cfg.OnComplete, onError: cfg.OnError}
	if !cfg.Enabled {
		return n
	}
	switch strings.ToLower(cfg.NotificationType) {
	case "desktop":
		n.console = true
		n.sender = platformSender()
	case "terminal":
		n.console = true
	}
	return n
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// SendNotification sends an informational notification
func (n *Notifier) SendNotification(title, message string) {
	if !n.onComplete {
		return
	}
	n.emit(Cyan(title)+": "+Yellow(message), title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	if !n.onError {
		return
	}
	n.emit(Red(title)+": "+Red(message), title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	if !n.onComplete {
		return
	}
	n.emit(Green(title)+": "+Green(message), title, message)
}

func (n *Notifier) emit(line, title, message string) {
	if n.console && !IsQuietMode() {
		fmt.Fprintf(out, "\n%s\n", line)
	}
	if n.sender != nil {
		// desktop notifications are best effort
		_ = n.sender.Send(title, message)
	}
}
