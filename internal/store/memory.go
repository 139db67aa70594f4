// Package store provides storage backends for leadline.
//
// This file implements an in-memory store used in tests and when no
// database DSN is configured.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/clienterra/leadline/internal/models"
)

// InMemoryStore is a thread-safe in-memory implementation of Store.
type InMemoryStore struct {
	mu              sync.RWMutex
	clients         map[int64]*models.Client // keyed by internal ID
	byExternal      map[int64]int64          // external ID -> internal ID
	messages        map[int64][]models.Message
	welcomeTemplate string
	nextClientID    int64
	nextMessageID   int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clients:    make(map[int64]*models.Client),
		byExternal: make(map[int64]int64),
		messages:   make(map[int64][]models.Message),
	}
}

func (s *InMemoryStore) GetClientByExternalID(externalID int64) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	c := *s.clients[id]
	return &c, nil
}

func (s *InMemoryStore) CreateClient(c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextClientID++
	now := time.Now().UTC()
	c.ID = s.nextClientID
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.clients[c.ID] = &stored
	s.byExternal[c.ExternalID] = c.ID
	return nil
}

func (s *InMemoryStore) UpdateClientStatus(clientID int64, status models.ClientStatus) error {
	if !models.IsValidClientStatus(status) {
		return models.ErrInvalidClientStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	if !models.CanTransitionStatus(c.Status, status) {
		return models.ErrStatusRegression
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) AppendClientBrief(clientID int64, entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	c.Brief = models.AppendBrief(c.Brief, entry)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) AddMessage(m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	m.ID = s.nextMessageID
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	s.messages[m.ClientID] = append(s.messages[m.ClientID], *m)
	return nil
}

func (s *InMemoryStore) GetClientMessages(clientID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]models.Message, len(s.messages[clientID]))
	copy(msgs, s.messages[clientID])
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (s *InMemoryStore) GetClients() ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, *c)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedAt.Equal(clients[j].CreatedAt) {
			return clients[i].ID > clients[j].ID
		}
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (s *InMemoryStore) GetWelcomeTemplate() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.welcomeTemplate, nil
}

func (s *InMemoryStore) SaveWelcomeTemplate(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcomeTemplate = text
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
