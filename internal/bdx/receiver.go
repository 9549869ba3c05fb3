package bdx

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshuafuller/matterlink/internal/cancel"
	"github.com/joshuafuller/matterlink/internal/errors"
)

// State enumerates the receiver-drive BDX state machine's states (§4.11).
type State int

const (
	StateIdle State = iota
	StateAwaitAccept
	StateQuerying
	StateAwaitingBlock
	StateDone
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitAccept:
		return "AWAIT_ACCEPT"
	case StateQuerying:
		return "QUERYING"
	case StateAwaitingBlock:
		return "AWAITING_BLOCK"
	case StateDone:
		return "DONE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// IdleTimeout is the per-message watchdog from §4.11 ("the idle timeout per
// message is 5 minutes").
const IdleTimeout = 5 * time.Minute

// Sender is the outbound half of the exchange a ReceiverSession drives
// (typically an internal/channel.Channel).
type Sender interface {
	Send(payload []byte) error
}

// BlockSink receives file bytes as they arrive, in order.
type BlockSink interface {
	WriteBlock(offset uint64, data []byte) error
}

// ReceiverSession drives the receiver side of a receiver-drive BDX
// transfer: IDLE -> AWAIT_ACCEPT -> QUERYING -> AWAITING_BLOCK -> DONE.
type ReceiverSession struct {
	TransferID string

	sender Sender
	sink   BlockSink

	mu                   sync.Mutex
	state                State
	maxBlockSize         uint32
	fileSize             uint64
	offset               uint64
	expectedBlockCounter uint32
	idle                 *cancel.Abort
	onIdleTimeout        func(*ReceiverSession, error)
}

// NewReceiverSession creates a receiver-drive BDX session in state IDLE.
// onIdleTimeout, if non-nil, is invoked (with the session already closed)
// when a message is not received within IdleTimeout.
func NewReceiverSession(sender Sender, sink BlockSink, onIdleTimeout func(*ReceiverSession, error)) *ReceiverSession {
	return &ReceiverSession{
		TransferID:    uuid.NewString(),
		sender:        sender,
		sink:          sink,
		state:         StateIdle,
		onIdleTimeout: onIdleTimeout,
	}
}

// State returns the session's current state.
func (r *ReceiverSession) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SendReceiveInit transitions IDLE -> AWAIT_ACCEPT, proposing maxBlockSize
// starting at startOffset of a file of fileSize (0 if unknown).
func (r *ReceiverSession) SendReceiveInit(fileDesignator string, maxBlockSize uint32, fileSize, startOffset uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return &errors.ImplementationError{Message: "SendReceiveInit called outside IDLE"}
	}
	r.maxBlockSize = maxBlockSize
	r.fileSize = fileSize
	r.offset = startOffset

	payload := EncodeInit(TypeReceiveInit, InitMessage{
		MaxBlockSize:   maxBlockSize,
		FileSize:       fileSize,
		StartOffset:    startOffset,
		FileDesignator: fileDesignator,
	})
	if err := r.sender.Send(payload); err != nil {
		return err
	}
	r.state = StateAwaitAccept
	r.resetIdleLocked()
	return nil
}

// HandleMessage dispatches an incoming BDX payload per the session's
// current state, advancing the state machine or closing the exchange with
// a status report on protocol violation.
func (r *ReceiverSession) HandleMessage(payload []byte) error {
	msgType, err := PeekType(payload)
	if err != nil {
		return r.fail(StatusBadMessageContent, "cannot read message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateAwaitAccept:
		if msgType != TypeSendAccept {
			return r.failLocked(StatusUnexpectedMessage, "expected SendAccept")
		}
		_, accept, err := DecodeAccept(payload)
		if err != nil {
			return r.failLocked(StatusBadMessageContent, "malformed SendAccept")
		}
		if accept.MaxBlockSize > 0 && accept.MaxBlockSize < r.maxBlockSize {
			r.maxBlockSize = accept.MaxBlockSize
		}
		return r.sendBlockQueryLocked()

	case StateAwaitingBlock:
		if msgType != TypeBlock && msgType != TypeBlockEof {
			return r.failLocked(StatusUnexpectedMessage, "expected Block or BlockEof")
		}
		block, err := DecodeBlock(payload)
		if err != nil {
			return r.failLocked(StatusBadMessageContent, "malformed Block")
		}
		if !block.EOF && len(block.Data) == 0 {
			return r.failLocked(StatusBadMessageContent, "empty Block must be BlockEof")
		}
		return r.handleBlockLocked(block)

	default:
		return r.failLocked(StatusUnexpectedMessage, "message received outside an active exchange")
	}
}

func (r *ReceiverSession) handleBlockLocked(block BlockMessage) error {
	if block.BlockCounter != r.expectedBlockCounter {
		return r.failLocked(StatusBadBlockCounter, "unexpected block counter")
	}

	if len(block.Data) > 0 {
		if err := r.sink.WriteBlock(r.offset, block.Data); err != nil {
			return err
		}
		r.offset += uint64(len(block.Data))
	}

	if block.EOF {
		ack := EncodeBlockAck(BlockAckMessage{BlockCounter: block.BlockCounter, AckEof: true})
		if err := r.sender.Send(ack); err != nil {
			return err
		}
		r.state = StateDone
		r.clearIdleLocked()
		return nil
	}

	ack := EncodeBlockAck(BlockAckMessage{BlockCounter: block.BlockCounter})
	if err := r.sender.Send(ack); err != nil {
		return err
	}
	r.expectedBlockCounter = nextBlockCounter(block.BlockCounter)
	return r.sendBlockQueryLocked()
}

func (r *ReceiverSession) sendBlockQueryLocked() error {
	query := EncodeBlockQuery(TypeBlockQuery, BlockQueryMessage{BlockCounter: r.expectedBlockCounter})
	if err := r.sender.Send(query); err != nil {
		return err
	}
	r.state = StateAwaitingBlock
	r.resetIdleLocked()
	return nil
}

// nextBlockCounter advances a 32-bit block counter, wrapping at 2^32 per
// §4.11.
func nextBlockCounter(counter uint32) uint32 {
	return counter + 1 // unsigned overflow wraps at 2^32 by definition
}

func (r *ReceiverSession) fail(statusCode uint32, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failLocked(statusCode, message)
}

func (r *ReceiverSession) failLocked(statusCode uint32, message string) error {
	r.state = StateClosed
	r.clearIdleLocked()
	return &errors.BdxError{StatusCode: statusCode, Message: message}
}

// HandlePeerStatusReport records that the peer reported a non-success
// status and closes the exchange (§4.11 BdxStatusResponseError).
func (r *ReceiverSession) HandlePeerStatusReport(general, protocol uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateClosed
	r.clearIdleLocked()
	return &errors.BdxStatusResponseError{General: general, Protocol: protocol}
}

func (r *ReceiverSession) resetIdleLocked() {
	r.clearIdleLocked()
	r.idle = cancel.NewWithOptions(cancel.Options{
		Timeout: IdleTimeout,
		OnAbort: func(reason error) {
			r.mu.Lock()
			r.state = StateClosed
			r.mu.Unlock()
			if r.onIdleTimeout != nil {
				r.onIdleTimeout(r, reason)
			}
		},
	})
}

func (r *ReceiverSession) clearIdleLocked() {
	if r.idle != nil {
		r.idle.Close()
		r.idle = nil
	}
}

// Close aborts any pending idle timer and marks the session closed. Safe to
// call multiple times.
func (r *ReceiverSession) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateClosed
	r.clearIdleLocked()
}
