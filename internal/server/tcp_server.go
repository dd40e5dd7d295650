package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/connection"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/internal/scheduler"
	"github.com/smukkama/air-quality-server/pkg/config"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

// Publisher forwards encoded readings, keyed by station
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// TCPServer accepts monitoring stations and forwards their readings to Kafka
type TCPServer struct {
	config      *config.TCPServerConfig
	connManager *connection.Manager
	scheduler   *scheduler.Scheduler
	producer    Publisher
	logger      *zap.SugaredLogger

	// readPoll bounds each blocking read so the loop notices shutdown
	readPoll time.Duration

	listener net.Listener
	wg       sync.WaitGroup
	stopCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewTCPServer creates a new TCP server
func NewTCPServer(cfg *config.TCPServerConfig, connManager *connection.Manager, sched *scheduler.Scheduler, producer Publisher, logger *zap.SugaredLogger) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		config:      cfg,
		connManager: connManager,
		scheduler:   sched,
		producer:    producer,
		logger:      logging.OrNop(logger),
		readPoll:    30 * time.Second,
		stopCh:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts listening on the configured port, 0 picks a free one
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.listener = listener
	s.logger.Infow("TCP server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Addr returns the listening address, nil before Start
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every station connection, then waits for handlers
func (s *TCPServer) Stop() {
	close(s.stopCh)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, id := range s.connManager.All() {
		if st, ok := s.connManager.Get(id); ok {
			st.Conn.Close()
		}
	}

	s.wg.Wait()
	s.logger.Info("TCP server stopped")
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Warnw("Failed to accept connection", "error", err)
				continue
			}
		}

		if s.connManager.Count() >= s.config.MaxConnections {
			s.logger.Warnw("Maximum connections reached, rejecting connection", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()
	log := s.logger.With("connection_id", connectionID, "remote", conn.RemoteAddr().String())
	log.Debug("New connection")

	conn.SetReadDeadline(time.Now().Add(s.config.IdentifyTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Warnw("Failed to read identify message", "error", err)
		return
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		log.Warnw("Failed to parse identify message", "error", err)
		s.sendError(conn, err)
		return
	}
	identify, ok := msg.(*protocol.IdentifyMessage)
	if !ok {
		s.sendError(conn, fmt.Errorf("expected identify message, got %T", msg))
		return
	}

	station, err := s.connManager.Register(connectionID, identify.Station, identify.Name, conn)
	if err != nil {
		log.Warnw("Failed to register station", "station", identify.Station, "error", err)
		s.sendError(conn, err)
		return
	}
	defer s.connManager.Unregister(connectionID)
	defer s.scheduler.Cancel(timeoutID(connectionID))

	log = log.With("station", identify.Station)
	log.Infow("Station identified", "name", identify.Name)

	if err := s.sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusIdentified)); err != nil {
		log.Warnw("Failed to send ack", "error", err)
		return
	}
	s.scheduleInactivityTimeout(connectionID)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.readPoll))
		line, err := reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			log.Infow("Connection closed", "error", err)
			return
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			log.Warnw("Failed to parse message", "error", err)
			s.sendError(conn, err)
			continue
		}

		if err := s.handleMessage(station, msg, conn); err != nil {
			log.Warnw("Failed to handle message", "error", err)
			s.sendError(conn, err)
		}
		s.scheduleInactivityTimeout(connectionID)
	}
}

func (s *TCPServer) handleMessage(station *connection.Station, msg interface{}, conn net.Conn) error {
	switch m := msg.(type) {
	case *protocol.ReadingMessage:
		return s.handleReading(station, m)

	case *protocol.KeepaliveMessage:
		station.Touch()
		return s.sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusAlive))

	case *protocol.IdentifyMessage:
		return fmt.Errorf("station already identified as %s", station.StationID)

	default:
		return fmt.Errorf("unknown message type: %T", msg)
	}
}

func (s *TCPServer) handleReading(station *connection.Station, msg *protocol.ReadingMessage) error {
	data, err := protocol.EncodeStationReading(&protocol.StationReading{
		ConnectionID: station.ConnectionID,
		Station:      station.StationID,
		Name:         station.Name,
		ReceivedAt:   time.Now().UTC(),
		Data:         msg.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	if err := s.producer.Publish(s.ctx, station.StationID, data); err != nil {
		return fmt.Errorf("failed to publish reading: %w", err)
	}

	station.RecordReading()
	return nil
}

func (s *TCPServer) sendMessage(conn net.Conn, msg interface{}) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(data, '\n'))
	return err
}

func (s *TCPServer) sendError(conn net.Conn, err error) {
	_ = s.sendMessage(conn, protocol.NewErrorAck(err))
}

func timeoutID(connectionID string) string {
	return "inactivity:" + connectionID
}

// scheduleInactivityTimeout (re)arms the timer that drops a silent station
func (s *TCPServer) scheduleInactivityTimeout(connectionID string) {
	err := s.scheduler.Schedule(timeoutID(connectionID), time.Now().Add(s.config.InactivityTimeout), func() {
		st, ok := s.connManager.Get(connectionID)
		if !ok {
			return
		}
		s.logger.Infow("Inactivity timeout", "connection_id", connectionID, "station", st.StationID)
		st.Conn.Close()
	})
	if err != nil {
		s.logger.Warnw("Failed to schedule inactivity timeout", "connection_id", connectionID, "error", err)
	}
}
