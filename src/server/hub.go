package server

import (
	"encoding/json"
	"math"
	"net/http"

	"level-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				s.dropClient(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Add(1)
			client.send <- s.initialMessage(subscription{})

		case client := <-s.subscribe:
			if _, ok := s.clients[client]; !ok {
				continue
			}
			select {
			case client.send <- s.initialMessage(client.Subscription()):
			default:
				s.dropClient(client)
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.dropClient(client)
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				if message.Stream != nil && !client.Subscription().matches(*message.Stream) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow consumers are dropped so the hub never blocks
					s.Logger.Warning("Client send buffer full, disconnecting")
					s.dropClient(client)
				}
			}
		}
	}
}

// dropClient must only run on the hub goroutine.
func (s *FastAPIServer) dropClient(client *Client) {
	delete(s.clients, client)
	s.connections.Add(-1)
	close(client.send)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// PublishSnapshot stores snapshot unless a snapshot covering a later series
// end is already held, then pushes a LEVELS message.
func (s *FastAPIServer) PublishSnapshot(snapshot models.MLevelSnapshot) {
	key := snapshot.Stream.String()
	now := s.Now()

	s.stateMutex.Lock()
	if held, ok := s.latestState.Snapshots[key]; ok && held.SeriesTo > snapshot.SeriesTo {
		s.stateMutex.Unlock()
		s.Logger.Debug("Dropping stale snapshot for %s (series_to %d < %d)", key, snapshot.SeriesTo, held.SeriesTo)
		return
	}
	s.latestState.Snapshots[key] = snapshot
	s.latestState.Timestamp = now.Unix()
	price := s.priceLocked(key, snapshot)
	s.stateMutex.Unlock()

	stream := snapshot.Stream
	s.enqueue(&models.MServerMessage{
		Type:        models.MessageLevels,
		Timestamp:   now.Unix(),
		Stream:      &stream,
		Snapshot:    &snapshot,
		Price:       price,
		Annotations: s.Presenter.Annotations(snapshot.Levels, price, now),
	})
}

// -----------------------------------------------------------------------------

// PublishPrice records a live tick and pushes a PRICE message. Annotations
// are recomputed against the tick whenever levels are known for the stream.
func (s *FastAPIServer) PublishPrice(stream models.MStreamKey, price float64) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return
	}
	key := stream.String()
	now := s.Now()

	s.stateMutex.Lock()
	s.latestState.Prices[key] = price
	s.tickTimes[key] = now
	s.latestState.Timestamp = now.Unix()
	snap, hasLevels := s.latestState.Snapshots[key]
	s.stateMutex.Unlock()

	msg := &models.MServerMessage{
		Type:      models.MessagePrice,
		Timestamp: now.Unix(),
		Stream:    &stream,
		Price:     price,
	}
	if hasLevels {
		msg.Annotations = s.Presenter.Annotations(snap.Levels, price, now)
	}
	s.enqueue(msg)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) UpdateMetrics(metrics models.MProcessingMetrics) {
	s.stateMutex.Lock()
	s.latestState.ProcessingMetrics = metrics
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

// Restore seeds the cache without notifying clients.
func (s *FastAPIServer) Restore(snapshots map[string]models.MLevelSnapshot) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	for key, snap := range snapshots {
		s.latestState.Snapshots[key] = snap
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) enqueue(msg *models.MServerMessage) {
	select {
	case s.broadcast <- msg:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s message", msg.Type)
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) initialMessage(f subscription) *models.MServerMessage {
	s.stateMutex.RLock()
	state := filterState(s.latestState, f)
	s.stateMutex.RUnlock()

	return &models.MServerMessage{
		Type:      models.MessageInitial,
		Timestamp: s.Now().Unix(),
		State:     state,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		send: make(chan *models.MServerMessage, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.Subscribe(subscription{Symbols: cmd.Symbols, Resolution: cmd.Resolution})

	// The hub owns client.send, so the reply goes through it.
	select {
	case s.subscribe <- client:
	case <-s.done:
	}
}
