package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"CommSpectra/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailNotifierSend(t *testing.T) {
	cfg := config.SMTPConfig{Host: "mail.local", Port: 25, From: "cs@local", To: "a@local, b@local"}
	n := NewEmailNotifier(cfg).(*EmailNotifier)

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	require.NoError(t, n.Send("late traffic", "<p>body</p>"))
	assert.Equal(t, "mail.local:25", gotAddr)
	assert.Equal(t, []string{"a@local", "b@local"}, gotTo)
	assert.True(t, strings.HasPrefix(string(gotMsg), "To: a@local, b@local\r\n"))
	assert.Contains(t, string(gotMsg), "Subject: late traffic\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\n<p>body</p>"))

	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, n.Send("s", "b"))
}

func TestNewPicksNotifier(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(config.SMTPConfig{}))
	assert.IsType(t, &EmailNotifier{}, New(config.SMTPConfig{Host: "mail.local"}))
	assert.NoError(t, LogNotifier{}.Send("s", "b"))
}
