// Package notify sends email alerts for notable pipeline events, primarily
// unknown faces appearing in view. Alerts are rate limited per subject so a
// lingering stranger does not flood the inbox.
package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-sentry/internal/config"
)

// Notifier sends alerts over SMTP. A disabled notifier swallows all calls.
type Notifier struct {
	cfg config.NotificationsConfig

	mu       sync.Mutex
	lastSent map[string]time.Time

	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a notifier from configuration.
func New(cfg config.NotificationsConfig) *Notifier {
	return &Notifier{
		cfg:      cfg,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		send:     smtp.SendMail,
	}
}

// UnknownFace alerts that an unrecognized person was seen. No-op when
// notifications or unknown-face alerts are disabled, or while the alert is
// inside its cooldown window.
func (n *Notifier) UnknownFace(at time.Time) {
	if !n.cfg.Enabled || !n.cfg.UnknownFaceAlert {
		return
	}
	n.alert("unknown_face", "Unknown face detected",
		fmt.Sprintf("An unrecognized person was detected at %s.", at.Format(time.RFC1123)))
}

// SpoofAttempt alerts that a face failed the liveness check.
func (n *Notifier) SpoofAttempt(name string, at time.Time) {
	if !n.cfg.Enabled {
		return
	}
	n.alert("spoof_"+name, "Possible spoofing attempt",
		fmt.Sprintf("A face matching %q failed the liveness check at %s.", name, at.Format(time.RFC1123)))
}

// alert applies the cooldown and sends the mail. Send failures are logged,
// not returned; alerting must never stall the pipeline.
func (n *Notifier) alert(key, subject, body string) {
	cooldown := time.Duration(n.cfg.CooldownMinutes) * time.Minute

	n.mu.Lock()
	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < cooldown {
		n.mu.Unlock()
		return
	}
	n.lastSent[key] = now
	n.mu.Unlock()

	if err := n.sendMail(subject, body); err != nil {
		log.Printf("could not send notification %q: %v", subject, err)
	}
}

func (n *Notifier) sendMail(subject, body string) error {
	email := n.cfg.Email
	if email.Server == "" || email.Sender == "" || len(email.Recipients) == 0 {
		return fmt.Errorf("smtp configuration incomplete")
	}

	msg := strings.Join([]string{
		"From: " + email.Sender,
		"To: " + strings.Join(email.Recipients, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", email.Server, email.Port)
	auth := smtp.PlainAuth("", email.Sender, email.Password, email.Server)
	if err := n.send(addr, auth, email.Sender, email.Recipients, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}
