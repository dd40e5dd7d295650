package connection

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Station is a connected monitoring station
type Station struct {
	ConnectionID string
	StationID    string
	Name         string
	ConnectedAt  time.Time
	Conn         net.Conn

	mu            sync.RWMutex
	lastHeardFrom time.Time
	readings      int
}

// Touch records activity on the connection
func (s *Station) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeardFrom = time.Now()
}

// RecordReading records activity and counts one received reading
func (s *Station) RecordReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeardFrom = time.Now()
	s.readings++
}

// LastHeardFrom returns the last activity timestamp
func (s *Station) LastHeardFrom() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeardFrom
}

// Readings returns how many readings arrived on this connection
func (s *Station) Readings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings
}

// Manager tracks identified station connections. A station may hold several
// connections, e.g. while a reconnect overlaps the old socket.
type Manager struct {
	mu        sync.RWMutex
	conns     map[string]*Station // key: connection ID
	byStation map[string][]string // key: station ID
	maxConns  int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		conns:     make(map[string]*Station),
		byStation: make(map[string][]string),
		maxConns:  maxConnections,
	}
}

// Register adds an identified station connection
func (m *Manager) Register(connectionID, stationID, name string, conn net.Conn) (*Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.conns) >= m.maxConns {
		return nil, ErrMaxConnectionsReached
	}
	if _, exists := m.conns[connectionID]; exists {
		return nil, fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	st := &Station{
		ConnectionID:  connectionID,
		StationID:     stationID,
		Name:          name,
		ConnectedAt:   now,
		Conn:          conn,
		lastHeardFrom: now,
	}
	m.conns[connectionID] = st
	m.byStation[stationID] = append(m.byStation[stationID], connectionID)
	return st, nil
}

// Unregister removes a connection
func (m *Manager) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, exists := m.conns[connectionID]
	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	ids := m.byStation[st.StationID]
	for i, id := range ids {
		if id == connectionID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(m.byStation, st.StationID)
	} else {
		m.byStation[st.StationID] = ids
	}

	delete(m.conns, connectionID)
	return nil
}

// Get retrieves a connection by ID
func (m *Manager) Get(connectionID string) (*Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.conns[connectionID]
	return st, exists
}

// ByStation returns a copy of the connection IDs of one station
func (m *Manager) ByStation(stationID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byStation[stationID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Inactive returns connection IDs not heard from within timeout
func (m *Manager) Inactive(timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var inactive []string
	for id, st := range m.conns {
		if now.Sub(st.LastHeardFrom()) > timeout {
			inactive = append(inactive, id)
		}
	}
	return inactive
}

// Count returns the number of active connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// All returns every connection ID
func (m *Manager) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{
		TotalConnections: len(m.conns),
		Stations:         len(m.byStation),
		MaxConnections:   m.maxConns,
	}
	for _, st := range m.conns {
		stats.Readings += st.Readings()
	}
	return stats
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int
	Stations         int
	MaxConnections   int
	Readings         int
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}
