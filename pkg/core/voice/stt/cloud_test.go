package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-spy/pkg/core"
)

func TestNewCloud_ConstructorsAndName(t *testing.T) {
	client := &http.Client{}
	p := NewCloud("http://example.test/", "key", WithCloudHTTPClient(client), WithCloudPath("v1/stt"))
	if p.httpClient != client {
		t.Fatal("expected custom http client to be set")
	}
	if p.Name() != "cloud" {
		t.Fatalf("name = %q, want cloud", p.Name())
	}
	if p.baseURL != "http://example.test" {
		t.Fatalf("baseURL = %q, want trailing slash trimmed", p.baseURL)
	}
	if p.path != "/v1/stt" {
		t.Fatalf("path = %q, want /v1/stt", p.path)
	}
	if NewCloud("", "key").Configured() {
		t.Fatal("provider without base URL should not be configured")
	}
}

func TestCloudTranscribe_Success(t *testing.T) {
	var got cloudTranscribeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stt", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"text":"  هل المكان ده مغلق؟ ","confidence":0.82}`))
	}))
	defer srv.Close()

	p := NewCloud(srv.URL, "secret")
	tr, err := p.Transcribe(context.Background(), strings.NewReader("RIFFdata"), TranscribeOptions{Language: "ar", Format: "wav"})
	require.NoError(t, err)
	assert.Equal(t, "هل المكان ده مغلق؟", tr.Text)
	assert.InDelta(t, 0.82, tr.Confidence, 1e-9)
	assert.Equal(t, "cloud", tr.Provider)

	decoded, err := base64.StdEncoding.DecodeString(got.Audio)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(decoded))
	assert.Equal(t, "audio/wav", got.MimeType)
	assert.Equal(t, "ar", got.Language)
}

func TestCloudTranscribe_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   core.ErrorType
		msg    string
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, core.ErrAuth, "bad key"},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, core.ErrRateLimit, "slow down"},
		{http.StatusBadGateway, `upstream down`, core.ErrUnknown, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewCloud(srv.URL, "k").Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
			var coreErr *core.Error
			require.ErrorAs(t, err, &coreErr)
			assert.Equal(t, tt.want, coreErr.Type)
			assert.Equal(t, tt.msg, coreErr.Message)
			assert.Equal(t, tt.status, coreErr.Status)
		})
	}
}

func TestCloudTranscribe_EmptyTextIsNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	_, err := NewCloud(srv.URL, "").Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
	assert.Equal(t, core.ErrNoSpeech, core.Classify(err))
}

func TestCloudTranscribe_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewCloud(srv.URL, "").Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
	assert.Equal(t, core.ErrInvalidResponse, core.Classify(err))
}

func TestCloudTranscribe_TimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewCloud(srv.URL, "", WithCloudTimeout(50*time.Millisecond))
	_, err := p.Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
	assert.Equal(t, core.ErrNetwork, core.Classify(err))
}

func TestCloudTranscribe_NotConfigured(t *testing.T) {
	_, err := NewCloud("", "").Transcribe(context.Background(), strings.NewReader("x"), TranscribeOptions{})
	assert.Equal(t, core.ErrUnsupported, core.Classify(err))
}

func TestGetExtension(t *testing.T) {
	assert.Equal(t, "webm", getExtension("webm"))
	assert.Equal(t, "wav", getExtension(""))
	assert.Equal(t, "wav", getExtension("weird"))
}
