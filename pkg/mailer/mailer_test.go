package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/pkg/config"
)

func TestNewSelectsImplementation(t *testing.T) {
	_, isLog := New("SCAHTS", config.MailConfig{}, nil).(*LogMailer)
	assert.True(t, isLog)

	_, isSendgrid := New("SCAHTS", config.MailConfig{SendgridAPIKey: "key"}, nil).(*SendgridMailer)
	assert.True(t, isSendgrid)
}

func TestSendgridMailerSend(t *testing.T) {
	var body map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendgridMailer("SCAHTS", config.MailConfig{SendgridAPIKey: "sg-key", FromName: "SCAHTS", FromAddress: "no-reply@scahts.test"}, zap.NewNop()).
		WithHost(srv.URL)

	err := m.Send(context.Background(), Message{
		To:          mail.Address{Name: "Asha", Address: "asha@scahts.test"},
		Subject:     "Leave approved",
		TextContent: "Your leave was approved",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", auth)

	personalizations := body["personalizations"].([]interface{})
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[SCAHTS] Leave approved", first["subject"])
}

func TestSendgridMailerSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := NewSendgridMailer("", config.MailConfig{SendgridAPIKey: "bad"}, nil).WithHost(srv.URL)
	err := m.Send(context.Background(), Message{To: mail.Address{Address: "a@b.test"}, Subject: "x", TextContent: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendgridMailerRequiresRecipient(t *testing.T) {
	m := NewSendgridMailer("", config.MailConfig{SendgridAPIKey: "k"}, nil)
	require.Error(t, m.Send(context.Background(), Message{Subject: "x"}))
}
