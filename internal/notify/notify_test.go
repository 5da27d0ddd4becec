package notify

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-sentry/internal/config"
)

type sentMail struct {
	to  []string
	msg string
}

func newTestNotifier(enabled bool) (*Notifier, *[]sentMail, *time.Time) {
	n := New(config.NotificationsConfig{
		Enabled:          enabled,
		UnknownFaceAlert: true,
		CooldownMinutes:  5,
		Email: config.SMTPConfig{
			Server:     "smtp.example.com",
			Port:       587,
			Sender:     "sentry@example.com",
			Password:   "secret",
			Recipients: []string{"ops@example.com"},
		},
	})

	var sent []sentMail
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{to: to, msg: string(msg)})
		return nil
	}
	return n, &sent, &now
}

func TestUnknownFace_SendsMail(t *testing.T) {
	n, sent, _ := newTestNotifier(true)

	n.UnknownFace(time.Now())

	if len(*sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(*sent))
	}
	mail := (*sent)[0]
	if mail.to[0] != "ops@example.com" {
		t.Errorf("recipient = %v", mail.to)
	}
	if !strings.Contains(mail.msg, "Subject: Unknown face detected") {
		t.Errorf("missing subject in %q", mail.msg)
	}
}

func TestUnknownFace_Cooldown(t *testing.T) {
	n, sent, now := newTestNotifier(true)

	n.UnknownFace(time.Now())
	n.UnknownFace(time.Now())
	if len(*sent) != 1 {
		t.Fatalf("sent %d mails inside cooldown, want 1", len(*sent))
	}

	*now = now.Add(6 * time.Minute)
	n.UnknownFace(time.Now())
	if len(*sent) != 2 {
		t.Errorf("sent %d mails after cooldown, want 2", len(*sent))
	}
}

func TestSpoofAttempt_CooldownIsPerName(t *testing.T) {
	n, sent, _ := newTestNotifier(true)

	n.SpoofAttempt("alice", time.Now())
	n.SpoofAttempt("alice", time.Now())
	n.SpoofAttempt("bob", time.Now())

	if len(*sent) != 2 {
		t.Errorf("sent %d mails, want 2 (one per name)", len(*sent))
	}
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	n, sent, _ := newTestNotifier(false)

	n.UnknownFace(time.Now())
	n.SpoofAttempt("alice", time.Now())

	if len(*sent) != 0 {
		t.Errorf("disabled notifier sent %d mails", len(*sent))
	}
}
