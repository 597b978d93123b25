package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare ten digit", "5551234567", "+15551234567", false},
		{"formatted us", "(555) 123-4567", "+15551234567", false},
		{"eleven digit with country code", "15551234567", "+15551234567", false},
		{"already e164", "+447911123456", "+447911123456", false},
		{"e164 with spaces", " +49 151 2345 6789 ", "+4915123456789", false},
		{"international without plus", "447911123456", "+447911123456", false},
		{"empty", "", "", true},
		{"too short", "12345", "", true},
		{"plus but too short", "+1234567", "", true},
		{"too long", "12345678901234567", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecipient)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransientStatus(t *testing.T) {
	assert.True(t, transientStatus(http.StatusInternalServerError))
	assert.True(t, transientStatus(http.StatusBadGateway))
	assert.True(t, transientStatus(http.StatusServiceUnavailable))
	assert.True(t, transientStatus(http.StatusTooManyRequests))

	assert.False(t, transientStatus(http.StatusOK))
	assert.False(t, transientStatus(http.StatusBadRequest))
	assert.False(t, transientStatus(http.StatusUnauthorized))
	assert.False(t, transientStatus(http.StatusNotFound))
}

// fastClient builds a client pointed at the test server with short retry
// delays so the retry path stays quick under test.
func fastClient(t *testing.T, baseURL string) *httpClient {
	t.Helper()
	c := newHTTPClient(baseURL, 2*time.Second)
	c.maxRetries = 2
	return c
}

func TestEmailClientSend(t *testing.T) {
	t.Run("sends and decodes the provider response", func(t *testing.T) {
		var gotPath string
		var gotBody EmailRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(EmailResponse{MessageID: "em-1", Status: "queued"})
		}))
		defer srv.Close()

		client := NewEmailClient(srv.URL, 2*time.Second)
		resp, err := client.Send(context.Background(), &EmailRequest{
			To:      "jordan@example.com",
			Subject: "Your inquiry",
			Content: "Thanks for reaching out.",
		})

		require.NoError(t, err)
		assert.Equal(t, "em-1", resp.MessageID)
		assert.Equal(t, "queued", resp.Status)
		assert.Equal(t, "/api/v1/email/send", gotPath)
		assert.Equal(t, "jordan@example.com", gotBody.To)
	})

	t.Run("rejects an empty recipient before calling out", func(t *testing.T) {
		client := NewEmailClient("http://127.0.0.1:1", 2*time.Second)
		_, err := client.Send(context.Background(), &EmailRequest{Subject: "x"})
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})
}

func TestPostJSONRetries(t *testing.T) {
	t.Run("retries a transient failure then succeeds", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := fastClient(t, srv.URL)
		body, err := c.postJSON(context.Background(), "/send", []byte(`{}`))

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("does not retry a permanent rejection", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		c := fastClient(t, srv.URL)
		_, err := c.postJSON(context.Background(), "/send", []byte(`{}`))

		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after exhausting retries", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := fastClient(t, srv.URL)
		_, err := c.postJSON(context.Background(), "/send", []byte(`{}`))

		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

func TestSMSClient(t *testing.T) {
	t.Run("normalizes the recipient and decodes cost", func(t *testing.T) {
		var gotBody SMSRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(SMSResponse{MessageID: "sm-1", Status: "queued", Cost: 0.0225, Segments: 2})
		}))
		defer srv.Close()

		client := NewSMSClient(srv.URL, 2*time.Second)
		resp, err := client.Send(context.Background(), &SMSRequest{
			To:      "(555) 123-4567",
			Message: "Your test drive is confirmed.",
		})

		require.NoError(t, err)
		assert.Equal(t, "+15551234567", gotBody.To)
		assert.Equal(t, "sm-1", resp.MessageID)
		assert.Equal(t, 0.0225, resp.Cost)
		assert.Equal(t, 2, resp.Segments)
	})

	t.Run("rejects an unparseable number", func(t *testing.T) {
		client := NewSMSClient("http://127.0.0.1:1", 2*time.Second)
		_, err := client.Send(context.Background(), &SMSRequest{To: "123", Message: "hi"})
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("reads the provider opt-out registry", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/sms/optout/+15551234567", r.URL.Path)
			w.Write([]byte(`{"opted_out":true}`))
		}))
		defer srv.Close()

		client := NewSMSClient(srv.URL, 2*time.Second)
		out, err := client.IsOptedOut(context.Background(), "5551234567")

		require.NoError(t, err)
		assert.True(t, out)
	})

	t.Run("treats a registry failure as opted in", func(t *testing.T) {
		client := NewSMSClient("http://127.0.0.1:1", 500*time.Millisecond)
		out, err := client.IsOptedOut(context.Background(), "5551234567")

		require.NoError(t, err)
		assert.False(t, out)
	})
}
