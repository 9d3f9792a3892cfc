package wipecore

import (
	"errors"
	"fmt"
	"syscall"
)

// WipeErrorKind represents high-level error categories surfaced to
// callers, independent of the underlying errno (if any).
type WipeErrorKind string

const (
	ErrKindDeviceNotFound     WipeErrorKind = "device not found"
	ErrKindDeviceBusy         WipeErrorKind = "device busy"
	ErrKindInvalidParameters  WipeErrorKind = "invalid parameters"
	ErrKindPermissionDenied   WipeErrorKind = "permission denied"
	ErrKindInsufficientMemory WipeErrorKind = "insufficient memory"
	ErrKindIOError            WipeErrorKind = "I/O error"
	ErrKindTimeout            WipeErrorKind = "timeout"
	ErrKindDeviceOffline      WipeErrorKind = "device offline"
	ErrKindChecksumMismatch   WipeErrorKind = "verification checksum mismatch"
	ErrKindUnsupportedMedia   WipeErrorKind = "unsupported media class"
)

// Error is a structured wipe-core error carrying enough context
// (device, algorithm, pass, offset, attempt) to reconstruct what the
// pipeline was doing when it failed.
type Error struct {
	Op           string
	DeviceOrPath string
	Algorithm    string
	Pass         int // -1 if not applicable
	Offset       int64
	Attempt      int // 0 if not applicable
	Kind         WipeErrorKind
	Errno        syscall.Errno
	Msg          string
	Inner        error
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.DeviceOrPath != "" {
		parts = append(parts, fmt.Sprintf("device=%s", e.DeviceOrPath))
	}
	if e.Algorithm != "" {
		parts = append(parts, fmt.Sprintf("algorithm=%s", e.Algorithm))
	}
	if e.Pass >= 0 {
		parts = append(parts, fmt.Sprintf("pass=%d", e.Pass))
	}
	if e.Offset != 0 {
		parts = append(parts, fmt.Sprintf("offset=%d", e.Offset))
	}
	if e.Attempt != 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("wipecore: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("wipecore: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	return false
}

// NewError creates a structured error with no device/pass context.
func NewError(op string, kind WipeErrorKind, msg string) *Error {
	return &Error{Op: op, Pass: -1, Kind: kind, Msg: msg}
}

// NewPassError creates a structured error for a failure during a
// specific pass of an algorithm, at a given offset and attempt count.
func NewPassError(op, device, algorithm string, pass int, offset int64, attempt int, kind WipeErrorKind, msg string) *Error {
	return &Error{
		Op: op, DeviceOrPath: device, Algorithm: algorithm,
		Pass: pass, Offset: offset, Attempt: attempt,
		Kind: kind, Msg: msg,
	}
}

// WrapError wraps inner with wipe-core context, mapping a bare
// syscall.Errno to a WipeErrorKind when possible.
func WrapError(op, device string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if we, ok := inner.(*Error); ok {
		return &Error{
			Op: op, DeviceOrPath: device, Algorithm: we.Algorithm,
			Pass: we.Pass, Offset: we.Offset, Attempt: we.Attempt,
			Kind: we.Kind, Errno: we.Errno, Msg: we.Msg, Inner: we.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op: op, DeviceOrPath: device, Pass: -1,
			Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error(), Inner: inner,
		}
	}

	return &Error{Op: op, DeviceOrPath: device, Pass: -1, Kind: ErrKindIOError, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToKind(errno syscall.Errno) WipeErrorKind {
	switch errno {
	case syscall.ENOENT:
		return ErrKindDeviceNotFound
	case syscall.EBUSY:
		return ErrKindDeviceBusy
	case syscall.EINVAL, syscall.E2BIG:
		return ErrKindInvalidParameters
	case syscall.EPERM, syscall.EACCES:
		return ErrKindPermissionDenied
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrKindInsufficientMemory
	case syscall.ETIMEDOUT:
		return ErrKindTimeout
	case syscall.ENODEV, syscall.ENXIO:
		return ErrKindDeviceOffline
	default:
		return ErrKindIOError
	}
}

// IsKind reports whether err (or any error it wraps) is a *Error of
// the given kind.
func IsKind(err error, kind WipeErrorKind) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}
