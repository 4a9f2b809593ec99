package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ClientMessage struct {
	Client  *Client
	Message *Message
}

// Manager is the change-feed hub. Every registered client receives every
// broadcast; connections are capped per advisor.
type Manager struct {
	clients           map[string]*Client
	advisorIndex      map[string]map[string]bool
	clientsMutex      sync.RWMutex
	Register          chan *Client
	Unregister        chan *Client
	HandleMessage     chan *ClientMessage
	maxConnPerAdvisor int
	writeWait         time.Duration
	pongWait          time.Duration
	pingPeriod        time.Duration
	messageHandler    MessageHandler
	logger            *zap.Logger
	done              chan struct{}
	stopOnce          sync.Once
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

func NewManager(maxConnPerAdvisor int, writeWait, pongWait, pingPeriod time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		clients:           make(map[string]*Client),
		advisorIndex:      make(map[string]map[string]bool),
		Register:          make(chan *Client),
		Unregister:        make(chan *Client),
		HandleMessage:     make(chan *ClientMessage),
		maxConnPerAdvisor: maxConnPerAdvisor,
		writeWait:         writeWait,
		pongWait:          pongWait,
		pingPeriod:        pingPeriod,
		logger:            logger.Named("ws"),
		done:              make(chan struct{}),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves the hub until ctx is cancelled. Once it returns, pending and
// later sends to the hub's channels are abandoned instead of blocking.
func (m *Manager) Run(ctx context.Context) {
	defer m.stopOnce.Do(func() { close(m.done) })

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.advisorIndex[client.Advisor] == nil {
		m.advisorIndex[client.Advisor] = make(map[string]bool)
	}

	if m.maxConnPerAdvisor > 0 && len(m.advisorIndex[client.Advisor]) >= m.maxConnPerAdvisor {
		m.logger.Warn("max connections reached", zap.String("advisor", client.Advisor))
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.advisorIndex[client.Advisor][client.ID] = true

	m.logger.Info("client registered", zap.String("client_id", client.ID), zap.String("advisor", client.Advisor))
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.advisorIndex[client.Advisor], client.ID)

		if len(m.advisorIndex[client.Advisor]) == 0 {
			delete(m.advisorIndex, client.Advisor)
		}

		close(client.Send)
		m.logger.Info("client unregistered", zap.String("client_id", client.ID))
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	m.clientsMutex.RLock()
	_, registered := m.clients[clientMsg.Client.ID]
	m.clientsMutex.RUnlock()
	if !registered || m.messageHandler == nil {
		return
	}

	if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, clientMsg.Message); err != nil {
		m.logger.Warn("error handling message", zap.Error(err))
	}
}

// Attach registers client and starts its pumps. It reports false when the
// hub has already stopped; the caller still owns the connection then.
func (m *Manager) Attach(client *Client) bool {
	select {
	case m.Register <- client:
	case <-m.done:
		return false
	}

	go client.writePump()
	go client.readPump()
	return true
}

func (m *Manager) unregister(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) dispatch(msg *ClientMessage) bool {
	select {
	case m.HandleMessage <- msg:
		return true
	case <-m.done:
		return false
	}
}

// Broadcast queues message for every client. Clients whose buffer is full
// are dropped.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client
	m.clientsMutex.RLock()
	for clientID, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			m.logger.Warn("send buffer full, closing connection", zap.String("client_id", clientID))
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		go m.unregister(client)
	}
	return nil
}

func (m *Manager) Connections() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) AdvisorConnections(advisor string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.advisorIndex[advisor]; exists {
		return len(clients)
	}
	return 0
}
