package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-spy/pkg/core"
	"github.com/vango-go/vai-spy/pkg/core/types"
)

const (
	localName             = "device"
	localDefaultTimeout   = 20 * time.Second
	localDefaultRate      = 16000
	localFeedChunkBytes   = 8000
	localHandshakeTimeout = 5 * time.Second
)

// LocalProvider transcribes through an on-device streaming recognizer that
// speaks the Vosk websocket protocol: a config frame, binary PCM frames, an
// {"eof":1} frame, then one final {"text": ...} result.
type LocalProvider struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
}

// NewLocal creates a local recognizer provider. An empty url yields a provider
// whose Detect reports unavailable.
func NewLocal(url string) *LocalProvider {
	return &LocalProvider{
		url:     strings.TrimSpace(url),
		dialer:  &websocket.Dialer{HandshakeTimeout: localHandshakeTimeout},
		timeout: localDefaultTimeout,
	}
}

// WithTimeout bounds a full recognition.
func (p *LocalProvider) WithTimeout(d time.Duration) *LocalProvider {
	if p != nil && d > 0 {
		p.timeout = d
	}
	return p
}

// Name returns the provider identifier.
func (p *LocalProvider) Name() string {
	return localName
}

// Detect reports whether the on-device recognizer can be used.
func (p *LocalProvider) Detect() types.Capability {
	if p == nil || p.url == "" {
		return types.Unavailable("no on-device recognizer configured")
	}
	return types.Available("vosk-ws")
}

// Transcribe runs one recognition over a finalized audio chunk.
func (p *LocalProvider) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	if !p.Detect().Available {
		return nil, core.NewUnsupportedError("on-device transcription is not available")
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	pcm, rate := pcmPayload(data)
	if len(pcm) == 0 {
		return nil, core.NewNoSpeechError("empty audio chunk")
	}
	if opts.SampleRate > 0 {
		rate = opts.SampleRate
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rec, err := p.Start(ctx, rate)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	for off := 0; off < len(pcm); off += localFeedChunkBytes {
		end := min(off+localFeedChunkBytes, len(pcm))
		if err := rec.Feed(pcm[off:end]); err != nil {
			return nil, core.FromTransport(localName+"-stt", err)
		}
	}
	if err := rec.Stop(); err != nil {
		return nil, core.FromTransport(localName+"-stt", err)
	}
	return rec.Wait(ctx)
}

// Recognition is one recognizer session. It resolves exactly once: with the
// final transcript, with an error, or with cancellation.
type Recognition struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	stopped atomic.Bool

	once   sync.Once
	done   chan struct{}
	result *Transcript
	err    error
}

// Start dials the recognizer and sends the session config.
func (p *LocalProvider) Start(ctx context.Context, sampleRate int) (*Recognition, error) {
	if sampleRate <= 0 {
		sampleRate = localDefaultRate
	}
	conn, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, core.FromTransport(localName+"-stt", fmt.Errorf("websocket connect: %w", err))
	}

	r := &Recognition{conn: conn, done: make(chan struct{})}
	cfg := map[string]any{"config": map[string]any{"sample_rate": sampleRate, "words": 1}}
	if err := r.writeJSON(cfg); err != nil {
		conn.Close()
		return nil, core.FromTransport(localName+"-stt", err)
	}

	go r.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			r.resolve(nil, ctx.Err())
			r.Close()
		case <-r.done:
		}
	}()
	return r, nil
}

// Feed sends a PCM16LE frame.
func (r *Recognition) Feed(pcm []byte) error {
	if r.stopped.Load() {
		return errors.New("recognition stopped")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Stop signals end of input; the final result follows asynchronously.
func (r *Recognition) Stop() error {
	if r.stopped.Swap(true) {
		return nil
	}
	return r.writeJSON(map[string]int{"eof": 1})
}

// Wait blocks until the recognition resolves.
func (r *Recognition) Wait(ctx context.Context) (*Transcript, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		r.resolve(nil, ctx.Err())
		return nil, core.FromTransport(localName+"-stt", ctx.Err())
	}
}

// Close releases the connection. Safe to call more than once.
func (r *Recognition) Close() error {
	r.resolve(nil, errors.New("recognition closed"))
	return r.conn.Close()
}

func (r *Recognition) writeJSON(v any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(v)
}

func (r *Recognition) resolve(t *Transcript, err error) {
	r.once.Do(func() {
		r.result = t
		r.err = err
		close(r.done)
	})
}

type localResult struct {
	Partial *string `json:"partial,omitempty"`
	Text    *string `json:"text,omitempty"`
	Result  []struct {
		Conf float64 `json:"conf"`
		Word string  `json:"word"`
	} `json:"result,omitempty"`
}

func (r *Recognition) readLoop() {
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			r.resolve(nil, core.NewNetworkError("recognizer connection closed", err))
			return
		}
		var msg localResult
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Text == nil {
			continue
		}
		text := strings.TrimSpace(*msg.Text)
		if text == "" {
			r.resolve(nil, core.NewNoSpeechError("no speech recognized"))
			return
		}
		r.resolve(&Transcript{
			Text:       text,
			Confidence: averageConfidence(msg),
			Provider:   localName,
		}, nil)
		return
	}
}

func averageConfidence(msg localResult) float64 {
	if len(msg.Result) == 0 {
		return 1
	}
	var sum float64
	for _, w := range msg.Result {
		sum += w.Conf
	}
	return clampConfidence(sum / float64(len(msg.Result)))
}

// pcmPayload strips a canonical RIFF/WAVE header when present and returns the
// PCM body with the header's sample rate.
func pcmPayload(data []byte) ([]byte, int) {
	if len(data) < 44 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return data, localDefaultRate
	}
	rate := int(binary.LittleEndian.Uint32(data[24:28]))
	if rate <= 0 {
		rate = localDefaultRate
	}
	return data[44:], rate
}
