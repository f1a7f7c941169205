// Package server hosts downstream TCP connections: it runs the Noise NX
// responder handshake, then owns exactly one Standard Channel per
// connection for the lifetime of that connection.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sv2pool/core/internal/channel"
	"github.com/sv2pool/core/internal/config"
	"github.com/sv2pool/core/internal/jobs"
	"github.com/sv2pool/core/internal/noise"
	"github.com/sv2pool/core/internal/storage"
	"github.com/sv2pool/core/internal/target"
	"github.com/sv2pool/core/internal/telemetry"
	"github.com/sv2pool/core/internal/wire"
)

// ConnectionState tracks a connection's progress from raw TCP accept
// through a completed Noise handshake to an open, mining channel.
type ConnectionState int32

const (
	StateConnected ConnectionState = iota
	StateHandshaking
	StateChannelOpen
	StateDisconnected
)

// Connection owns one downstream TCP socket, its post-handshake session
// ciphers, and the single Standard Channel it hosts. It carries no
// synchronization over the channel itself — per the single-threaded
// ownership model, only this connection's own read loop ever drives it.
type Connection struct {
	id     string
	conn   net.Conn
	cfg    config.ServerConfig
	logger *zap.Logger

	redis    *storage.RedisClient
	postgres *storage.PostgresClient

	decryptor *noise.SessionCipher
	encryptor *noise.SessionCipher

	ch *channel.StandardChannel

	state     int32
	writeMu   sync.Mutex
	closeChan chan struct{}
	closeOnce sync.Once
}

// newConnection wraps a freshly accepted socket. redis and postgres may be
// nil, in which case share/block persistence and online-channel tracking
// are silently skipped.
func newConnection(conn net.Conn, cfg config.ServerConfig, redis *storage.RedisClient, postgres *storage.PostgresClient, logger *zap.Logger) *Connection {
	return &Connection{
		id:        uuid.New().String()[:8],
		conn:      conn,
		cfg:       cfg,
		redis:     redis,
		postgres:  postgres,
		logger:    logger.Named("connection"),
		closeChan: make(chan struct{}),
	}
}

// ID returns the connection's short identifier.
func (c *Connection) ID() string { return c.id }

// GetState returns the current connection state.
func (c *Connection) GetState() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&c.state))
}

// handshake runs the responder side of the Noise NX exchange: read the
// initiator's 64-byte ElligatorSwift ephemeral key, run step_1, and send
// back the 234-byte response, installing the resulting session ciphers.
func (c *Connection) handshake(responder *noise.Responder) error {
	atomic.StoreInt32(&c.state, int32(StateHandshaking))
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

	var theirsEphemeral [noise.EllswiftEncodingSize]byte
	if _, err := io.ReadFull(c.conn, theirsEphemeral[:]); err != nil {
		return fmt.Errorf("handshake: read ephemeral key: %w", err)
	}

	out, c1, c2, err := responder.Step1(theirsEphemeral, uint32(time.Now().Unix()))
	if err != nil {
		telemetry.HandshakeFailures.Inc()
		return fmt.Errorf("handshake: step_1: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := c.conn.Write(out[:]); err != nil {
		return fmt.Errorf("handshake: write response: %w", err)
	}

	// c1 carries initiator -> responder traffic (our decryptor); c2
	// carries the reverse (our encryptor).
	c.decryptor = c1
	c.encryptor = c2
	return nil
}

// bindChannel attaches the Standard Channel this connection will host for
// its lifetime, opened in response to the downstream's
// OpenStandardMiningChannel request.
func (c *Connection) bindChannel(ch *channel.StandardChannel) {
	c.ch = ch
	atomic.StoreInt32(&c.state, int32(StateChannelOpen))
}

// Handle runs the connection's post-handshake frame loop, dispatching
// SubmitSharesStandard messages to the bound channel.
func (c *Connection) Handle(ctx context.Context) error {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeChan:
			return nil
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		frame, err := c.readFrame()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		if err := c.handleFrame(frame); err != nil {
			c.logger.Debug("failed to handle frame",
				zap.String("connection_id", c.id),
				zap.Uint8("msg_type", frame.Header.MsgType),
				zap.Error(err),
			)
		}
	}
}

func (c *Connection) readFrame() (wire.Frame, error) {
	var headerBuf [wire.HeaderSize]byte
	if _, err := io.ReadFull(c.conn, headerBuf[:]); err != nil {
		return wire.Frame{}, err
	}
	header, err := wire.ParseHeader(headerBuf[:])
	if err != nil {
		return wire.Frame{}, err
	}

	ciphertext := make([]byte, int(header.MsgLength))
	if _, err := io.ReadFull(c.conn, ciphertext); err != nil {
		return wire.Frame{}, err
	}

	payload, err := c.decryptor.Decrypt(headerBuf[:], ciphertext)
	if err != nil {
		return wire.Frame{}, err
	}
	header.MsgLength = uint32(len(payload))
	return wire.Frame{Header: header, Payload: payload}, nil
}

func (c *Connection) handleFrame(frame wire.Frame) error {
	switch frame.Header.MsgType {
	case wire.MsgTypeSubmitSharesStandard:
		return c.handleSubmitShares(frame.Payload)
	default:
		return fmt.Errorf("unsupported message type 0x%02x", frame.Header.MsgType)
	}
}

func (c *Connection) handleSubmitShares(payload []byte) error {
	if c.ch == nil {
		return fmt.Errorf("no channel open")
	}
	msg, err := wire.ParseSubmitSharesStandardMessage(payload)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := c.ch.ValidateShare(channel.SubmitSharesStandard{
		ChannelID:      msg.ChannelID,
		SequenceNumber: msg.SequenceNumber,
		JobID:          msg.JobID,
		Nonce:          msg.Nonce,
		NTime:          msg.NTime,
		Version:        msg.Version,
	})
	telemetry.ShareProcessingTime.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.SharesTotal.WithLabelValues(shareErrorLabel(err)).Inc()
		c.persistShare(msg, false, err.Error(), nil)
		return c.sendFrame(wire.MsgTypeSubmitSharesError, wire.SubmitSharesErrorMessage{
			ChannelID:      msg.ChannelID,
			SequenceNumber: msg.SequenceNumber,
			ErrorCode:      wire.STR0255(err.Error()),
		}.Serialize())
	}

	switch result.Kind {
	case channel.BlockFound:
		telemetry.SharesTotal.WithLabelValues("block_found").Inc()
		telemetry.BlocksFound.Inc()
		c.logger.Info("block found",
			zap.String("connection_id", c.id),
			zap.Int("coinbase_len", len(result.SerializedCoinbase)),
		)
		c.persistShare(msg, true, "", &result)
		fallthrough
	case channel.ValidWithAcknowledgement:
		telemetry.SharesTotal.WithLabelValues("valid_ack").Inc()
		if result.Kind != channel.BlockFound {
			c.persistShare(msg, true, "", nil)
		}
		return c.sendFrame(wire.MsgTypeSubmitSharesSuccess, wire.SubmitSharesSuccessMessage{
			ChannelID:          msg.ChannelID,
			LastSequenceNumber: result.LastSequenceNumber,
			NewSubmitsAccepted: 1,
			NewShareWorkSum:    result.ShareWorkSum,
		}.Serialize())
	default:
		telemetry.SharesTotal.WithLabelValues("valid").Inc()
		c.persistShare(msg, true, "", nil)
		return nil
	}
}

// persistShare records a share's outcome to Postgres (plus a block row on
// the block-found path), bumps Redis's per-channel valid/invalid counters
// for every share, and, for accepted shares only, feeds Redis's rolling
// hashrate estimate. It runs on a short-lived background
// context so a slow store never holds up the frame-processing loop or the
// acknowledgement the miner is waiting on.
func (c *Connection) persistShare(msg wire.SubmitSharesStandardMessage, valid bool, rejectReason string, result *channel.ShareValidationResult) {
	if c.redis == nil && c.postgres == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	go func() {
		defer cancel()

		difficulty := target.ToDifficulty(c.ch.Target())

		if c.postgres != nil {
			share := &storage.Share{
				ChannelID:      msg.ChannelID,
				JobID:          msg.JobID,
				SequenceNumber: msg.SequenceNumber,
				Difficulty:     difficulty,
				Valid:          valid,
				RejectReason:   rejectReason,
				SubmittedAt:    time.Now(),
			}
			if result != nil && result.Kind == channel.BlockFound {
				share.IsBlock = true
			}
			if err := c.postgres.InsertShare(ctx, share); err != nil {
				c.logger.Debug("failed to persist share", zap.Error(err))
			}
			if result != nil && result.Kind == channel.BlockFound && result.TemplateID != nil {
				if err := c.postgres.InsertBlock(ctx, &storage.Block{
					TemplateID: *result.TemplateID,
					ChannelID:  msg.ChannelID,
					Difficulty: difficulty,
					FoundAt:    time.Now(),
				}); err != nil {
					c.logger.Debug("failed to persist block", zap.Error(err))
				}
			}
		}

		if c.redis != nil {
			if err := c.redis.IncrementChannelShares(ctx, msg.ChannelID, valid); err != nil {
				c.logger.Debug("failed to increment redis share counter", zap.Error(err))
			}
			if valid {
				if err := c.redis.RecordShareForHashrate(ctx, msg.ChannelID, difficulty); err != nil {
					c.logger.Debug("failed to record share for hashrate", zap.Error(err))
				}
			}
		}
	}()
}

func shareErrorLabel(err error) string {
	switch err {
	case channel.ErrStale:
		return "stale"
	case channel.ErrDuplicateShare:
		return "duplicate"
	case channel.ErrDoesNotMeetTarget:
		return "low_difficulty"
	default:
		return "rejected"
	}
}

// SendNewMiningJob pushes a job announcement to the downstream device.
func (c *Connection) SendNewMiningJob(job jobs.StandardJob) error {
	if c.GetState() != StateChannelOpen {
		return nil
	}
	jm := job.JobMessage()
	return c.sendFrame(wire.MsgTypeNewMiningJob, wire.NewMiningJobMessage{
		ChannelID:  jm.ChannelID,
		JobID:      jm.JobID,
		Version:    jm.Version,
		MerkleRoot: jm.MerkleRoot,
	}.Serialize())
}

func (c *Connection) sendFrame(msgType uint8, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ciphertext, err := c.encryptor.Encrypt(nil, payload)
	if err != nil {
		return err
	}

	header := wire.FrameHeader{MsgType: msgType, MsgLength: uint32(len(ciphertext))}
	headerBytes := header.Serialize()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := c.conn.Write(headerBytes); err != nil {
		return err
	}
	_, err = c.conn.Write(ciphertext)
	return err
}

// Close tears the connection down idempotently.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		close(c.closeChan)
		c.conn.Close()
		if c.decryptor != nil {
			c.decryptor.Erase()
		}
		if c.encryptor != nil {
			c.encryptor.Erase()
		}
	})
}
