package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var (
		gotBody        map[string]string
		gotContentType string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &DiscordNotifier{WebhookURL: srv.URL}

	err := n.Notify(context.Background(), "✅ Thread Test_Thread saved")
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]string{"content": "✅ Thread Test_Thread saved"}, gotBody)
}

func TestDiscordNotifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := (&DiscordNotifier{WebhookURL: srv.URL, Client: srv.Client()}).Notify(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDiscordNotifier_MissingWebhook(t *testing.T) {
	err := (&DiscordNotifier{}).Notify(context.Background(), "x")

	require.EqualError(t, err, "webhook URL is not set")
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}

	assert.NoError(t, n.Notify(context.Background(), "anything"))
}
