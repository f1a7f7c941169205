package wire

import (
	"encoding/binary"
	"math"
)

// STR0255 is a length-prefixed string, 1-byte length then up to 255 bytes
// of UTF-8 data — the variable-length string encoding used throughout the
// mining protocol's handshake messages.
type STR0255 string

// Serialize encodes s with its 1-byte length prefix, truncating to 255
// bytes if longer.
func (s STR0255) Serialize() []byte {
	str := string(s)
	if len(str) > 255 {
		str = str[:255]
	}
	buf := make([]byte, 1+len(str))
	buf[0] = byte(len(str))
	copy(buf[1:], str)
	return buf
}

// ParseSTR0255 decodes a length-prefixed string, returning the string and
// the number of bytes consumed.
func ParseSTR0255(data []byte) (STR0255, int, error) {
	if len(data) < 1 {
		return "", 0, ErrTruncatedMessage
	}
	length := int(data[0])
	if len(data) < 1+length {
		return "", 0, ErrTruncatedMessage
	}
	return STR0255(data[1 : 1+length]), 1 + length, nil
}

// OpenStandardMiningChannel is the downstream request to open a channel.
type OpenStandardMiningChannel struct {
	RequestID         uint32
	UserIdentity      STR0255
	NominalHashrate   float32
	MaxTargetRequired [32]byte
}

// Serialize encodes the message body (without the frame header).
func (m OpenStandardMiningChannel) Serialize() []byte {
	identity := m.UserIdentity.Serialize()
	buf := make([]byte, 4+len(identity)+4+32)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], m.RequestID)
	off += 4
	copy(buf[off:], identity)
	off += len(identity)
	binary.LittleEndian.PutUint32(buf[off:], float32Bits(m.NominalHashrate))
	off += 4
	copy(buf[off:], m.MaxTargetRequired[:])
	return buf
}

// OpenStandardMiningChannelSuccess confirms a channel was opened.
type OpenStandardMiningChannelSuccess struct {
	RequestID        uint32
	ChannelID        uint32
	Target           [32]byte
	ExtranoncePrefix []byte
	GroupChannelID   uint32
}

// Serialize encodes the message body.
func (m OpenStandardMiningChannelSuccess) Serialize() []byte {
	buf := make([]byte, 0, 4+4+32+1+len(m.ExtranoncePrefix)+4)
	buf = appendUint32(buf, m.RequestID)
	buf = appendUint32(buf, m.ChannelID)
	buf = append(buf, m.Target[:]...)
	buf = append(buf, byte(len(m.ExtranoncePrefix)))
	buf = append(buf, m.ExtranoncePrefix...)
	buf = appendUint32(buf, m.GroupChannelID)
	return buf
}

// NewMiningJobMessage is the wire form of a standard job announcement.
type NewMiningJobMessage struct {
	ChannelID  uint32
	JobID      uint32
	Version    uint32
	MerkleRoot [32]byte
}

// Serialize encodes the message body.
func (m NewMiningJobMessage) Serialize() []byte {
	buf := make([]byte, 0, 4+4+4+32)
	buf = appendUint32(buf, m.ChannelID)
	buf = appendUint32(buf, m.JobID)
	buf = appendUint32(buf, m.Version)
	buf = append(buf, m.MerkleRoot[:]...)
	return buf
}

// SetNewPrevHashMessage is the wire form of a chain-tip update.
type SetNewPrevHashMessage struct {
	ChannelID uint32
	JobID     uint32
	PrevHash  [32]byte
	MinNTime  uint32
	NBits     uint32
}

// Serialize encodes the message body.
func (m SetNewPrevHashMessage) Serialize() []byte {
	buf := make([]byte, 0, 4+4+32+4+4)
	buf = appendUint32(buf, m.ChannelID)
	buf = appendUint32(buf, m.JobID)
	buf = append(buf, m.PrevHash[:]...)
	buf = appendUint32(buf, m.MinNTime)
	buf = appendUint32(buf, m.NBits)
	return buf
}

// SubmitSharesStandardMessage is the wire form of a share submission.
type SubmitSharesStandardMessage struct {
	ChannelID      uint32
	SequenceNumber uint32
	JobID          uint32
	Nonce          uint32
	NTime          uint32
	Version        uint32
}

// Serialize encodes the message body.
func (m SubmitSharesStandardMessage) Serialize() []byte {
	buf := make([]byte, 0, 4*6)
	buf = appendUint32(buf, m.ChannelID)
	buf = appendUint32(buf, m.SequenceNumber)
	buf = appendUint32(buf, m.JobID)
	buf = appendUint32(buf, m.Nonce)
	buf = appendUint32(buf, m.NTime)
	buf = appendUint32(buf, m.Version)
	return buf
}

// ParseSubmitSharesStandardMessage decodes a share submission body.
func ParseSubmitSharesStandardMessage(data []byte) (SubmitSharesStandardMessage, error) {
	if len(data) < 4*6 {
		return SubmitSharesStandardMessage{}, ErrTruncatedMessage
	}
	return SubmitSharesStandardMessage{
		ChannelID:      binary.LittleEndian.Uint32(data[0:4]),
		SequenceNumber: binary.LittleEndian.Uint32(data[4:8]),
		JobID:          binary.LittleEndian.Uint32(data[8:12]),
		Nonce:          binary.LittleEndian.Uint32(data[12:16]),
		NTime:          binary.LittleEndian.Uint32(data[16:20]),
		Version:        binary.LittleEndian.Uint32(data[20:24]),
	}, nil
}

// SubmitSharesSuccessMessage acknowledges a batch of accepted shares.
type SubmitSharesSuccessMessage struct {
	ChannelID           uint32
	LastSequenceNumber  uint32
	NewSubmitsAccepted  uint32
	NewShareWorkSum     uint64
}

// Serialize encodes the message body.
func (m SubmitSharesSuccessMessage) Serialize() []byte {
	buf := make([]byte, 0, 4+4+4+8)
	buf = appendUint32(buf, m.ChannelID)
	buf = appendUint32(buf, m.LastSequenceNumber)
	buf = appendUint32(buf, m.NewSubmitsAccepted)
	buf = appendUint64(buf, m.NewShareWorkSum)
	return buf
}

// SubmitSharesErrorMessage reports a rejected share.
type SubmitSharesErrorMessage struct {
	ChannelID      uint32
	SequenceNumber uint32
	ErrorCode      STR0255
}

// Serialize encodes the message body.
func (m SubmitSharesErrorMessage) Serialize() []byte {
	code := m.ErrorCode.Serialize()
	buf := make([]byte, 0, 4+4+len(code))
	buf = appendUint32(buf, m.ChannelID)
	buf = appendUint32(buf, m.SequenceNumber)
	buf = append(buf, code...)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}
