package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledWithoutHost(t *testing.T) {
	err := New(Config{}).Send(context.Background(), &Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestBuild(t *testing.T) {
	m := Build("noreply@medvault.local", &Message{
		To:      "doctor@example.com",
		Subject: "Shared dashboard",
		Body:    "Open https://medvault.example/?token=PAT001_4321",
		Attachment: &Attachment{
			Name:        "dashboard-qr.png",
			ContentType: "image/png",
			Data:        []byte("png-bytes"),
		},
	})

	assert.Equal(t, []string{"doctor@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Shared dashboard"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "dashboard-qr.png")
	assert.Contains(t, buf.String(), "PAT001_4321")
}
