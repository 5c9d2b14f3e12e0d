// Package stream implements the realtime transcription session: a
// bidirectional websocket carrying raw PCM up and transcript events down.
// All server messages are decoded into an ordered Event channel consumed
// by a single event loop, so callers never touch the connection state.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// chunkDuration is how much audio each upstream message carries.
	chunkDuration = 100 * time.Millisecond

	bytesPerSample = 2
)

type Options struct {
	URL        string
	APIKey     string
	SampleRate int
	Logger     *zap.Logger
	Dialer     *websocket.Dialer
}

type Session struct {
	conn       *websocket.Conn
	events     chan Event
	sampleRate int
	logger     *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens the realtime session. The sample rate travels in the query
// string and the credential in the Authorization header.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream endpoint: %w", err)
	}

	query := u.Query()
	query.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	u.RawQuery = query.Encode()

	header := http.Header{}
	header.Set("Authorization", opts.APIKey)

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open realtime session (status %s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("open realtime session: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		conn:       conn,
		events:     make(chan Event, 16),
		sampleRate: opts.SampleRate,
		logger:     logger,
	}

	go s.readLoop()

	return s, nil
}

// Events returns the ordered transcript event stream. The channel is
// closed after a KindClosed or KindError event.
func (s *Session) Events() <-chan Event {
	return s.events
}

type serverMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	SessionID   string `json:"session_id"`
	Error       string `json:"error"`
}

func (s *Session) readLoop() {
	defer close(s.events)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.events <- Event{Kind: KindClosed}
				return
			}
			s.events <- Event{Kind: KindError, Err: fmt.Errorf("read realtime session: %w", err)}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("undecodable realtime message", zap.Error(err))
			continue
		}

		if msg.Error != "" {
			s.events <- Event{Kind: KindError, Err: errors.New(msg.Error)}
			return
		}

		switch msg.MessageType {
		case "SessionBegins":
			s.events <- Event{Kind: KindSessionBegins, SessionID: msg.SessionID}
		case "PartialTranscript":
			if msg.Text != "" {
				s.events <- Event{Kind: KindPartial, Text: msg.Text}
			}
		case "FinalTranscript":
			if msg.Text != "" {
				s.events <- Event{Kind: KindFinal, Text: msg.Text}
			}
		case "SessionTerminated":
			s.events <- Event{Kind: KindClosed}
			return
		default:
			s.logger.Debug("ignoring realtime message", zap.String("type", msg.MessageType))
		}
	}
}

func (s *Session) SendAudio(chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// StreamFrom pumps raw PCM from r into the session in chunkDuration
// slices until r is exhausted or ctx is cancelled. It is meant to run on
// its own goroutine for the lifetime of the capture.
func (s *Session) StreamFrom(ctx context.Context, r io.Reader) error {
	chunkSize := s.sampleRate * bytesPerSample * int(chunkDuration.Milliseconds()) / 1000
	if chunkSize <= 0 {
		chunkSize = 8820
	}

	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if sendErr := s.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("send audio chunk: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("read capture stream: %w", err)
		}
	}
}

// Terminate asks the service to flush and close the session. The reader
// keeps draining events until SessionTerminated arrives.
func (s *Session) Terminate() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, []byte(`{"terminate_session":true}`))
}

// Close tears the connection down. Safe to call more than once and after
// Terminate.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
