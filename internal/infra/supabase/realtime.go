package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RealtimeSettings tunes the Realtime websocket subscriptions.
type RealtimeSettings struct {
	Heartbeat      time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (s RealtimeSettings) withDefaults() RealtimeSettings {
	if s.Heartbeat <= 0 {
		s.Heartbeat = 30 * time.Second
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = 500 * time.Millisecond
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = 30 * time.Second
	}
	return s
}

// phxMessage is a Phoenix channel frame.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type phxReply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

const joinRef = "1"

// Subscribe follows a table over Realtime. Every change notification triggers
// a re-read of the whole table, delivered as one snapshot; bursts of changes
// collapse into a single read. A fresh snapshot is also delivered after each
// (re)join so nothing missed while disconnected is lost. Connection failures
// are retried with capped backoff until unsubscribe is called.
func (c *Client) Subscribe(ctx context.Context, collection string, onSnapshot func([]domain.Document)) (func(), error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		client:     c,
		table:      collection,
		wsURL:      wsURL,
		onSnapshot: onSnapshot,
		dirty:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		logger:     c.logger.With(zap.String("table", collection)),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.fetchLoop(ctx) }()
	go func() { defer wg.Done(); s.connectLoop(ctx) }()
	go func() { wg.Wait(); close(s.done) }()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-s.done
		})
	}, nil
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("supabase: invalid base url %q", c.baseURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type subscription struct {
	client     *Client
	table      string
	wsURL      string
	onSnapshot func([]domain.Document)
	dirty      chan struct{}
	done       chan struct{}
	logger     *zap.Logger
}

// markDirty requests a re-read; pending requests coalesce.
func (s *subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// fetchLoop is the only goroutine that calls onSnapshot. A failed read is
// retried with backoff until it succeeds, so a change is never dropped.
func (s *subscription) fetchLoop(ctx context.Context) {
	backoff := resilience.Config{
		InitialBackoff: s.client.realtime.InitialBackoff,
		MaxBackoff:     s.client.realtime.MaxBackoff,
	}
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
		}

		docs, err := s.client.GetOnce(ctx, s.table)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			wait := resilience.NextBackoff(backoff, failures)
			failures++
			s.logger.Warn("realtime: snapshot read failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			s.markDirty()
			continue
		}
		failures = 0
		s.onSnapshot(docs)
	}
}

func (s *subscription) connectLoop(ctx context.Context) {
	backoff := resilience.Config{
		InitialBackoff: s.client.realtime.InitialBackoff,
		MaxBackoff:     s.client.realtime.MaxBackoff,
	}
	attempt := 0
	for {
		joined, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if joined {
			attempt = 0
		}
		wait := resilience.NextBackoff(backoff, attempt)
		attempt++
		s.logger.Warn("realtime: connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one websocket connection until it fails or ctx ends.
// joined reports whether the channel join was acknowledged.
func (s *subscription) session(ctx context.Context) (joined bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	topic := "realtime:public:" + s.table
	join := map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": "public", "table": s.table},
			},
		},
		"access_token": s.client.bearer(),
	}
	if err := writeFrame(conn, topic, "phx_join", join, joinRef); err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	frames := make(chan phxMessage)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			var msg phxMessage
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- msg:
			case <-stop:
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.client.realtime.Heartbeat)
	defer heartbeat.Stop()
	ref := 1

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return joined, ctx.Err()

		case err := <-readErr:
			return joined, fmt.Errorf("read: %w", err)

		case <-heartbeat.C:
			ref++
			if err := writeFrame(conn, "phoenix", "heartbeat", map[string]any{}, strconv.Itoa(ref)); err != nil {
				return joined, fmt.Errorf("heartbeat: %w", err)
			}

		case msg := <-frames:
			if msg.Topic != topic {
				continue
			}
			switch msg.Event {
			case "phx_reply":
				if msg.Ref != joinRef {
					continue
				}
				var reply phxReply
				_ = json.Unmarshal(msg.Payload, &reply)
				if reply.Status != "ok" {
					return false, fmt.Errorf("join rejected: %s", string(reply.Response))
				}
				joined = true
				s.logger.Info("realtime: subscribed")
				s.markDirty()
			case "postgres_changes", "INSERT", "UPDATE", "DELETE":
				s.markDirty()
			case "phx_error", "phx_close":
				return joined, fmt.Errorf("channel %s", msg.Event)
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, topic, event string, payload any, ref string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(phxMessage{Topic: topic, Event: event, Payload: raw, Ref: ref})
}
