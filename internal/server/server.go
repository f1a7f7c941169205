// Package server implements the TCP server hosting Noise-encrypted Sv2
// Standard Channel connections.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sv2pool/core/internal/channel"
	"github.com/sv2pool/core/internal/config"
	"github.com/sv2pool/core/internal/jobs"
	"github.com/sv2pool/core/internal/noise"
	"github.com/sv2pool/core/internal/storage"
	"github.com/sv2pool/core/internal/target"
	"github.com/sv2pool/core/internal/telemetry"
)

// Server accepts downstream TCP connections, runs the Noise NX handshake
// on each, and hosts one Standard Channel per connection for its
// lifetime.
type Server struct {
	cfg       config.ServerConfig
	chCfg     config.ChannelConfig
	authority *btcec.PrivateKey
	certValid time.Duration
	logger    *zap.Logger
	redis     *storage.RedisClient
	postgres  *storage.PostgresClient

	listener      net.Listener
	metricsServer *http.Server
	connections   sync.Map // map[string]*Connection
	nextChannelID uint32
	connCount     int64
	shutdown      int32
	wg            sync.WaitGroup
}

// New creates a Server from its configuration, authority signing key, and
// the storage clients channel/share/block records are persisted through.
func New(cfg config.ServerConfig, chCfg config.ChannelConfig, authority *btcec.PrivateKey, certValid time.Duration, redis *storage.RedisClient, postgres *storage.PostgresClient, logger *zap.Logger) (*Server, error) {
	return &Server{
		cfg:       cfg,
		chCfg:     chCfg,
		authority: authority,
		certValid: certValid,
		redis:     redis,
		postgres:  postgres,
		logger:    logger.Named("server"),
	}, nil
}

// Start begins listening for and accepting connections.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	s.listener = listener

	s.logger.Info("server started",
		zap.String("address", addr),
		zap.Int("max_connections", s.cfg.MaxConnections),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn, err := listener.Accept()
			if err != nil {
				if atomic.LoadInt32(&s.shutdown) == 1 {
					return nil
				}
				s.logger.Error("failed to accept connection", zap.Error(err))
				telemetry.ConnectionErrors.Inc()
				continue
			}

			if atomic.LoadInt64(&s.connCount) >= int64(s.cfg.MaxConnections) {
				s.logger.Warn("max connections reached, rejecting connection",
					zap.String("remote_addr", conn.RemoteAddr().String()),
				)
				conn.Close()
				continue
			}

			s.wg.Add(1)
			go s.handleConnection(ctx, conn)
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, netConn net.Conn) {
	defer s.wg.Done()

	atomic.AddInt64(&s.connCount, 1)
	telemetry.ActiveConnections.Inc()
	telemetry.TotalConnections.Inc()
	defer func() {
		atomic.AddInt64(&s.connCount, -1)
		telemetry.ActiveConnections.Dec()
	}()

	conn := newConnection(netConn, s.cfg, s.redis, s.postgres, s.logger)
	s.connections.Store(conn.ID(), conn)
	defer s.connections.Delete(conn.ID())

	responder, err := noise.New(s.authority, s.certValid)
	if err != nil {
		s.logger.Error("failed to construct noise responder", zap.Error(err))
		conn.Close()
		return
	}

	if err := conn.handshake(responder); err != nil {
		s.logger.Debug("handshake failed",
			zap.String("connection_id", conn.ID()),
			zap.Error(err),
		)
		conn.Close()
		return
	}

	ch, err := s.openChannel(conn)
	if err != nil {
		s.logger.Error("failed to open channel",
			zap.String("connection_id", conn.ID()),
			zap.Error(err),
		)
		conn.Close()
		return
	}
	conn.bindChannel(ch)
	s.registerChannel(ctx, ch)
	defer s.deregisterChannel(context.Background(), ch.ChannelID())

	s.logger.Info("channel opened",
		zap.String("connection_id", conn.ID()),
		zap.Uint32("channel_id", ch.ChannelID()),
	)

	if err := conn.Handle(ctx); err != nil {
		s.logger.Debug("connection closed",
			zap.String("connection_id", conn.ID()),
			zap.Error(err),
		)
	}
}

// registerChannel records a newly opened channel's identity in Postgres and
// marks it online in Redis, for dashboards and cross-process visibility;
// failures here are logged, not fatal, since they don't affect the
// channel's ability to mine.
func (s *Server) registerChannel(ctx context.Context, ch *channel.StandardChannel) {
	now := time.Now()
	if s.postgres != nil {
		if err := s.postgres.UpsertChannel(ctx, &storage.Channel{
			ChannelID:    ch.ChannelID(),
			UserIdentity: ch.UserIdentity(),
			FirstSeenAt:  now,
			LastSeenAt:   now,
		}); err != nil {
			s.logger.Debug("failed to upsert channel record", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.AddOnlineChannel(ctx, ch.ChannelID()); err != nil {
			s.logger.Debug("failed to mark channel online", zap.Error(err))
		}
	}
}

func (s *Server) deregisterChannel(ctx context.Context, channelID uint32) {
	if s.redis != nil {
		if err := s.redis.RemoveOnlineChannel(ctx, channelID); err != nil {
			s.logger.Debug("failed to mark channel offline", zap.Error(err))
		}
	}
}

// openChannel constructs a fresh Standard Channel for a newly
// handshaken connection using the server's configured defaults.
func (s *Server) openChannel(conn *Connection) (*channel.StandardChannel, error) {
	channelID := atomic.AddUint32(&s.nextChannelID, 1)

	extranoncePrefix := make([]byte, s.chCfg.ExtranoncePrefixSize)
	binaryBigEndianPutUint32(extranoncePrefix, channelID)

	maxTarget := target.Max()

	return channel.New(
		channelID,
		conn.ID(),
		extranoncePrefix,
		maxTarget,
		s.chCfg.InitialNominalHashrate,
		s.chCfg.ShareBatchSize,
		s.chCfg.ExpectedSharesPerMinute,
		jobs.NewDefaultJobStore(),
	)
}

func binaryBigEndianPutUint32(b []byte, v uint32) {
	if len(b) < 4 {
		return
	}
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// BroadcastNewMiningJob pushes a job to every open channel's connection.
func (s *Server) BroadcastNewMiningJob(job jobs.StandardJob) {
	telemetry.JobsGenerated.Inc()
	s.connections.Range(func(_, value interface{}) bool {
		if conn, ok := value.(*Connection); ok {
			if err := conn.SendNewMiningJob(job); err != nil {
				s.logger.Debug("failed to send job", zap.String("connection_id", conn.ID()), zap.Error(err))
			}
		}
		return true
	})
}

// StartMetricsServer starts the Prometheus metrics HTTP server.
func (s *Server) StartMetricsServer() error {
	addr := fmt.Sprintf(":%d", s.cfg.Metrics.Port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.metricsServer = &http.Server{Addr: addr, Handler: mux}
	s.logger.Info("metrics server started", zap.String("address", addr))
	return s.metricsServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down, closing the listener and all
// connections and waiting (up to ctx's deadline) for their goroutines to
// exit.
func (s *Server) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&s.shutdown, 1)

	if s.listener != nil {
		s.listener.Close()
	}

	s.connections.Range(func(_, value interface{}) bool {
		if conn, ok := value.(*Connection); ok {
			conn.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed")
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, some connections may be forcefully closed")
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	return nil
}

// ConnectionCount returns the current number of active connections.
func (s *Server) ConnectionCount() int64 {
	return atomic.LoadInt64(&s.connCount)
}
