// Package events streams run and configuration events to Server-Sent Events clients.
package events

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout bounds one write to a client. Slower clients are dropped.
const WriteTimeout = 2 * time.Second

// Event types.
const (
	TypeConnected    = "connected"
	TypeRunCompleted = "run.completed"
	TypeRunFailed    = "run.failed"
	TypeSweepStep    = "sweep.step"
	TypeConfigReload = "config.reloaded"
)

// Event is one message on the stream.
type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Client is a connected subscriber.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	once    sync.Once
	wmu     sync.Mutex
}

// send writes one frame and flushes it.
func (c *Client) send(frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.Writer.Write(frame); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// Broadcaster fans events out to every connected client.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*Client)}
}

// AddClient registers w. It fails when w cannot flush.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	c := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[c.ID] = c
	n := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("client_id", c.ID).Int("clients", n).Msg("Event client connected")
	return c, nil
}

// RemoveClient unregisters c. Removing twice is harmless.
func (b *Broadcaster) RemoveClient(c *Client) {
	b.mu.Lock()
	_, ok := b.clients[c.ID]
	delete(b.clients, c.ID)
	n := len(b.clients)
	b.mu.Unlock()

	c.close()
	if ok {
		log.Debug().Str("client_id", c.ID).Int("clients", n).Msg("Event client disconnected")
	}
}

// Close disconnects every client, ending their ServeHTTP calls.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		log.Debug().Int("clients", len(clients)).Msg("Event clients closed")
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish stamps ev and sends it to every client. Writes run concurrently, each bounded
// by WriteTimeout; clients that fail or time out are removed.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	frame, err := encode(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to marshal event")
		return
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	dead := make(chan *Client, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		select {
		case <-c.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !write(c, frame) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.RemoveClient(c)
	}
}

// encode renders ev as an SSE frame with a named event line.
func encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data)), nil
}

func write(c *Client, frame []byte) bool {
	done := make(chan bool, 1)
	go func() {
		if err := c.send(frame); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID).Msg("Event write failed")
			done <- false
			return
		}
		done <- true
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(WriteTimeout):
		log.Warn().Str("client_id", c.ID).Dur("timeout", WriteTimeout).Msg("Event write timed out")
		return false
	case <-c.Done:
		return true
	}
}

// ServeHTTP streams events until the request context ends.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(c)

	frame, err := encode(Event{Type: TypeConnected, Time: time.Now().UTC(), Data: map[string]string{"client_id": c.ID}})
	if err == nil {
		_ = c.send(frame)
	}

	select {
	case <-r.Context().Done():
	case <-c.Done:
	}
}
