package risk

import (
	"encoding/json"
	"fmt"
)

// Result is either Ok(value) or Failed(reason). The zero value is a failure
// with an empty reason, so a slot that was never filled cannot read as success.
type Result[T any] struct {
	ok     bool
	value  T
	reason string
}

func Ok[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

func Failed[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

func Failedf[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{reason: fmt.Sprintf(format, args...)}
}

func (r Result[T]) IsOk() bool { return r.ok }

// Get returns the value and whether the result is Ok.
func (r Result[T]) Get() (T, bool) { return r.value, r.ok }

// Reason is the failure reason, empty for Ok results.
func (r Result[T]) Reason() string {
	if r.ok {
		return ""
	}
	if r.reason == "" {
		return "not collected"
	}
	return r.reason
}

// FailedAs carries the failure reason of r into a result of another type.
func FailedAs[U, T any](r Result[T]) Result[U] {
	return Failed[U](r.Reason())
}

// Map applies fn to an Ok value and passes failures through verbatim.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return FailedAs[U](r)
	}
	return Ok(fn(r.value))
}

type resultJSON[T any] struct {
	Status string `json:"status"`
	Value  *T     `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.ok {
		v := r.value
		return json.Marshal(resultJSON[T]{Status: "ok", Value: &v})
	}
	return json.Marshal(resultJSON[T]{Status: "failed", Reason: r.Reason()})
}

func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var raw resultJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case "ok":
		var v T
		if raw.Value != nil {
			v = *raw.Value
		}
		*r = Ok(v)
	case "failed":
		*r = Failed[T](raw.Reason)
	default:
		return fmt.Errorf("unknown result status %q", raw.Status)
	}
	return nil
}
