package mail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gomail "github.com/wneessen/go-mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/delivery"
)

func testRequest(t *testing.T, name string, convert bool) delivery.Request {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("book"), 0o644))
	return delivery.Request{
		Path:  path,
		Title: "War and Peace",
		Email: config.EmailConfig{
			SMTP:     "smtp.example.com",
			Port:     587,
			Password: "secret",
			From:     "me@example.com",
			To:       "reader@kindle.example.com",
		},
		Convert: convert,
	}
}

func TestBuildMessage(t *testing.T) {
	req := testRequest(t, "war.epub", true)

	m, err := buildMessage(req)
	require.NoError(t, err)

	assert.Equal(t, []string{ConvertSubject}, m.GetGenHeader(gomail.HeaderSubject))
	to, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"reader@kindle.example.com"}, to)
	from, err := m.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", from)

	attachments := m.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "war.epub", attachments[0].Name)
}

func TestBuildMessageWithoutConversion(t *testing.T) {
	m, err := buildMessage(testRequest(t, "war.pdf", false))
	require.NoError(t, err)
	assert.NotContains(t, m.GetGenHeader(gomail.HeaderSubject), ConvertSubject)
}

func TestBuildMessageInvalidAddress(t *testing.T) {
	req := testRequest(t, "war.epub", false)
	req.Email.To = "not an address"

	_, err := buildMessage(req)
	assert.Error(t, err)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := newClient(config.EmailConfig{Port: 587}, DefaultTimeout)
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	req := testRequest(t, "war.epub", true)

	var sent []*gomail.Msg
	s := NewSender(nil)
	s.send = func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error {
		sent = append(sent, msgs...)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), req))
	require.Len(t, sent, 1)
}

func TestSendFailure(t *testing.T) {
	s := NewSender(nil)
	s.send = func(context.Context, *gomail.Client, ...*gomail.Msg) error {
		return errors.New("connection refused")
	}

	err := s.Send(context.Background(), testRequest(t, "war.epub", false))
	assert.ErrorContains(t, err, "connection refused")
}
