package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrEmptyReturn is returned when a call succeeds but yields no data,
	// which is what a contract without the method and without a reverting
	// fallback produces.
	ErrEmptyReturn = errors.New("empty return data")

	// ErrMalformed wraps ABI decoding failures of otherwise successful calls.
	ErrMalformed = errors.New("malformed return data")

	ErrNoEndpoint = errors.New("no RPC endpoint available")
	ErrClosed     = errors.New("client closed")
)

// revertCode is the JSON-RPC error code geth uses for execution reverts.
const revertCode = 3

// RevertError is a contract-level failure: the node executed the call and it reverted.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// TransportError is any failure to get an answer from the node at all.
// Callers may retry the whole run on it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify maps a raw client error onto RevertError, ErrTimeout or TransportError.
// Errors already classified are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RevertError
	var te *TransportError
	if errors.As(err, &re) || errors.As(err, &te) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrEmptyReturn) || errors.Is(err, ErrMalformed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if isRevert(err) {
		return &RevertError{Reason: revertReason(err), Data: revertData(err)}
	}
	return &TransportError{Op: op, Err: err}
}

// IsContractFailure reports whether err came from contract execution or
// decoding rather than from the transport.
func IsContractFailure(err error) bool {
	var re *RevertError
	return errors.As(err, &re) || errors.Is(err, ErrEmptyReturn) || errors.Is(err, ErrMalformed)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Class names the error class for metrics labels.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsTimeout(err):
		return "timeout"
	case IsContractFailure(err):
		return "revert"
	default:
		return "transport"
	}
}

func isRevert(err error) bool {
	var rerr rpc.Error
	if errors.As(err, &rerr) && rerr.ErrorCode() == revertCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "vm execution error")
}

func revertData(err error) []byte {
	var derr rpc.DataError
	if !errors.As(err, &derr) {
		return nil
	}
	s, ok := derr.ErrorData().(string)
	if !ok {
		return nil
	}
	data, decErr := hexutil.Decode(s)
	if decErr != nil {
		return nil
	}
	return data
}

func revertReason(err error) string {
	if data := revertData(err); len(data) > 0 {
		if reason, uerr := abi.UnpackRevert(data); uerr == nil {
			return reason
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted: "); i >= 0 {
		return strings.TrimSpace(msg[i+len("execution reverted: "):])
	}
	return ""
}
