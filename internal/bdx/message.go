// Package bdx implements the Bulk Data Exchange block-transfer protocol
// (spec §4.11, C11): reliable large-file transfer over a Matter exchange,
// used by OTA and similar flows.
package bdx

import (
	"encoding/binary"

	"github.com/joshuafuller/matterlink/internal/errors"
)

// MessageType identifies one of the ten BDX message kinds (§4.11).
type MessageType byte

const (
	TypeSendInit MessageType = iota + 1
	TypeReceiveInit
	TypeSendAccept
	TypeReceiveAccept
	TypeBlock
	TypeBlockQuery
	TypeBlockQueryWithSkip
	TypeBlockEof
	TypeBlockAck
	TypeBlockAckEof
)

func (t MessageType) String() string {
	switch t {
	case TypeSendInit:
		return "SendInit"
	case TypeReceiveInit:
		return "ReceiveInit"
	case TypeSendAccept:
		return "SendAccept"
	case TypeReceiveAccept:
		return "ReceiveAccept"
	case TypeBlock:
		return "Block"
	case TypeBlockQuery:
		return "BlockQuery"
	case TypeBlockQueryWithSkip:
		return "BlockQueryWithSkip"
	case TypeBlockEof:
		return "BlockEof"
	case TypeBlockAck:
		return "BlockAck"
	case TypeBlockAckEof:
		return "BlockAckEof"
	default:
		return "Unknown"
	}
}

// InitMessage is the SendInit/ReceiveInit payload: the proposed transfer
// parameters (§4.11 "header with proposed/agreed max-block-size, file-size,
// start-offset").
type InitMessage struct {
	MaxBlockSize uint32
	FileSize     uint64
	StartOffset  uint64
	FileDesignator string
}

// EncodeInit serializes an InitMessage.
func EncodeInit(msgType MessageType, m InitMessage) []byte {
	designator := []byte(m.FileDesignator)
	buf := make([]byte, 1+4+8+8+2+len(designator))
	buf[0] = byte(msgType)
	binary.BigEndian.PutUint32(buf[1:5], m.MaxBlockSize)
	binary.BigEndian.PutUint64(buf[5:13], m.FileSize)
	binary.BigEndian.PutUint64(buf[13:21], m.StartOffset)
	binary.BigEndian.PutUint16(buf[21:23], uint16(len(designator)))
	copy(buf[23:], designator)
	return buf
}

// DecodeInit parses an InitMessage from a wire payload whose first byte is
// the message type.
func DecodeInit(data []byte) (MessageType, InitMessage, error) {
	if len(data) < 23 {
		return 0, InitMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "init message too short"}
	}
	msgType := MessageType(data[0])
	m := InitMessage{
		MaxBlockSize: binary.BigEndian.Uint32(data[1:5]),
		FileSize:     binary.BigEndian.Uint64(data[5:13]),
		StartOffset:  binary.BigEndian.Uint64(data[13:21]),
	}
	dlen := int(binary.BigEndian.Uint16(data[21:23]))
	if len(data) < 23+dlen {
		return 0, InitMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "init message truncated designator"}
	}
	m.FileDesignator = string(data[23 : 23+dlen])
	return msgType, m, nil
}

// AcceptMessage is the SendAccept/ReceiveAccept payload: the agreed
// transfer parameters.
type AcceptMessage struct {
	MaxBlockSize uint32
}

func EncodeAccept(msgType MessageType, m AcceptMessage) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(msgType)
	binary.BigEndian.PutUint32(buf[1:5], m.MaxBlockSize)
	return buf
}

func DecodeAccept(data []byte) (MessageType, AcceptMessage, error) {
	if len(data) < 5 {
		return 0, AcceptMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "accept message too short"}
	}
	return MessageType(data[0]), AcceptMessage{MaxBlockSize: binary.BigEndian.Uint32(data[1:5])}, nil
}

// BlockQueryMessage requests the next block; SkipOffset/SkipLength are only
// meaningful for BlockQueryWithSkip.
type BlockQueryMessage struct {
	BlockCounter uint32
	SkipOffset   uint64
	SkipLength   uint64
}

func EncodeBlockQuery(msgType MessageType, m BlockQueryMessage) []byte {
	if msgType == TypeBlockQueryWithSkip {
		buf := make([]byte, 1+4+8+8)
		buf[0] = byte(msgType)
		binary.BigEndian.PutUint32(buf[1:5], m.BlockCounter)
		binary.BigEndian.PutUint64(buf[5:13], m.SkipOffset)
		binary.BigEndian.PutUint64(buf[13:21], m.SkipLength)
		return buf
	}
	buf := make([]byte, 5)
	buf[0] = byte(msgType)
	binary.BigEndian.PutUint32(buf[1:5], m.BlockCounter)
	return buf
}

func DecodeBlockQuery(data []byte) (MessageType, BlockQueryMessage, error) {
	if len(data) < 5 {
		return 0, BlockQueryMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "block query too short"}
	}
	msgType := MessageType(data[0])
	m := BlockQueryMessage{BlockCounter: binary.BigEndian.Uint32(data[1:5])}
	if msgType == TypeBlockQueryWithSkip {
		if len(data) < 21 {
			return 0, BlockQueryMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "block query with skip too short"}
		}
		m.SkipOffset = binary.BigEndian.Uint64(data[5:13])
		m.SkipLength = binary.BigEndian.Uint64(data[13:21])
	}
	return msgType, m, nil
}

// BlockMessage carries one block of file data, or zero data with EOF=true
// for BlockEof (§4.11: "an empty Block is illegal (must be BlockEof)").
type BlockMessage struct {
	BlockCounter uint32
	Data         []byte
	EOF          bool
}

func EncodeBlock(m BlockMessage) []byte {
	msgType := TypeBlock
	if m.EOF {
		msgType = TypeBlockEof
	}
	buf := make([]byte, 1+4+len(m.Data))
	buf[0] = byte(msgType)
	binary.BigEndian.PutUint32(buf[1:5], m.BlockCounter)
	copy(buf[5:], m.Data)
	return buf
}

func DecodeBlock(data []byte) (BlockMessage, error) {
	if len(data) < 5 {
		return BlockMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "block message too short"}
	}
	msgType := MessageType(data[0])
	return BlockMessage{
		BlockCounter: binary.BigEndian.Uint32(data[1:5]),
		Data:         data[5:],
		EOF:          msgType == TypeBlockEof,
	}, nil
}

// BlockAckMessage acknowledges receipt of a block, or (AckEof) the final
// BlockEof.
type BlockAckMessage struct {
	BlockCounter uint32
	AckEof       bool
}

func EncodeBlockAck(m BlockAckMessage) []byte {
	msgType := TypeBlockAck
	if m.AckEof {
		msgType = TypeBlockAckEof
	}
	buf := make([]byte, 5)
	buf[0] = byte(msgType)
	binary.BigEndian.PutUint32(buf[1:5], m.BlockCounter)
	return buf
}

func DecodeBlockAck(data []byte) (BlockAckMessage, error) {
	if len(data) < 5 {
		return BlockAckMessage{}, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "block ack too short"}
	}
	msgType := MessageType(data[0])
	return BlockAckMessage{
		BlockCounter: binary.BigEndian.Uint32(data[1:5]),
		AckEof:       msgType == TypeBlockAckEof,
	}, nil
}

// PeekType reads only the leading message-type byte, for dispatch before a
// full decode.
func PeekType(data []byte) (MessageType, error) {
	if len(data) < 1 {
		return 0, &errors.BdxError{StatusCode: StatusBadMessageContent, Message: "empty bdx message"}
	}
	return MessageType(data[0]), nil
}

// BDX status codes (§4.11, Matter Core spec §11.22.5). Only the subset this
// package raises are named; peer-reported codes outside this set are
// preserved verbatim in BdxStatusResponseError.
const (
	StatusBadMessageContent  uint32 = 0x0b
	StatusBadBlockCounter    uint32 = 0x0c
	StatusUnexpectedMessage  uint32 = 0x14
	StatusTransferMethodNotSupported uint32 = 0x50
)
