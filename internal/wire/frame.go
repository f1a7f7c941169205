// Package wire implements the Sv2 binary framing layer: the six-byte
// frame header every message is wrapped in, and the message-type
// constants for the subset of the mining protocol this core speaks.
package wire

import (
	"encoding/binary"
	"errors"
)

// Message type constants for the messages the channel/noise core
// produces or consumes.
const (
	MsgTypeSetupConnection        uint8 = 0x00
	MsgTypeSetupConnectionSuccess uint8 = 0x01
	MsgTypeSetupConnectionError   uint8 = 0x02

	MsgTypeOpenStandardMiningChannel        uint8 = 0x10
	MsgTypeOpenStandardMiningChannelSuccess uint8 = 0x11
	MsgTypeOpenStandardMiningChannelError   uint8 = 0x12
	MsgTypeUpdateChannel                    uint8 = 0x16
	MsgTypeUpdateChannelError               uint8 = 0x17
	MsgTypeCloseChannel                     uint8 = 0x18

	MsgTypeNewMiningJob   uint8 = 0x20
	MsgTypeSetNewPrevHash uint8 = 0x22

	MsgTypeSubmitSharesStandard uint8 = 0x30
	MsgTypeSubmitSharesSuccess  uint8 = 0x32
	MsgTypeSubmitSharesError    uint8 = 0x33

	MsgTypeSetTarget uint8 = 0x40
)

// Channel/message-level error codes carried in *Error messages.
const (
	ErrCodeUnknownMessage     uint8 = 0x00
	ErrCodeInvalidChannelID   uint8 = 0x02
	ErrCodeInvalidJobID       uint8 = 0x03
	ErrCodeInvalidTarget      uint8 = 0x04
	ErrCodeStaleShare         uint8 = 0x06
	ErrCodeDuplicateShare     uint8 = 0x07
	ErrCodeLowDifficultyShare uint8 = 0x08
)

var (
	ErrInvalidHeader    = errors.New("wire: invalid frame header")
	ErrTruncatedMessage = errors.New("wire: truncated message")
)

// HeaderSize is the byte size of a frame header: extension_type(u16) ||
// msg_type(u8) || msg_length(u24).
const HeaderSize = 6

// FrameHeader is the fixed prefix of every Sv2 message frame.
type FrameHeader struct {
	ExtensionType uint16
	MsgType       uint8
	MsgLength     uint32 // 24-bit on the wire
}

// Serialize encodes h to its 6-byte wire form.
func (h FrameHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.ExtensionType)
	buf[2] = h.MsgType
	buf[3] = byte(h.MsgLength)
	buf[4] = byte(h.MsgLength >> 8)
	buf[5] = byte(h.MsgLength >> 16)
	return buf
}

// ParseHeader decodes a 6-byte frame header.
func ParseHeader(data []byte) (FrameHeader, error) {
	if len(data) < HeaderSize {
		return FrameHeader{}, ErrInvalidHeader
	}
	return FrameHeader{
		ExtensionType: binary.LittleEndian.Uint16(data[0:2]),
		MsgType:       data[2],
		MsgLength:     uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16,
	}, nil
}

// Frame is a header paired with its payload, as read off or written to the
// wire.
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// Serialize encodes the frame, setting Header.MsgLength from the payload.
func (f Frame) Serialize() []byte {
	h := f.Header
	h.MsgLength = uint32(len(f.Payload))
	out := make([]byte, 0, HeaderSize+len(f.Payload))
	out = append(out, h.Serialize()...)
	out = append(out, f.Payload...)
	return out
}

// ParseFrame decodes one frame from data, returning the frame and the
// number of bytes consumed.
func ParseFrame(data []byte) (Frame, int, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return Frame{}, 0, err
	}
	total := HeaderSize + int(header.MsgLength)
	if len(data) < total {
		return Frame{}, 0, ErrTruncatedMessage
	}
	payload := make([]byte, header.MsgLength)
	copy(payload, data[HeaderSize:total])
	return Frame{Header: header, Payload: payload}, total, nil
}
