package wipecore

import (
	"errors"
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("OPEN_DEVICE", ErrKindInvalidParameters, "invalid queue depth")

	if err.Op != "OPEN_DEVICE" {
		t.Errorf("Expected Op=OPEN_DEVICE, got %s", err.Op)
	}
	if err.Kind != ErrKindInvalidParameters {
		t.Errorf("Expected Kind=ErrKindInvalidParameters, got %s", err.Kind)
	}

	expected := "wipecore: invalid queue depth (op=OPEN_DEVICE)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestNewPassError(t *testing.T) {
	err := NewPassError("sequential_write", "/dev/sdx", "dod", 2, 4096, 3, ErrKindIOError, "short write")

	if err.DeviceOrPath != "/dev/sdx" {
		t.Errorf("Expected DeviceOrPath=/dev/sdx, got %s", err.DeviceOrPath)
	}
	if err.Pass != 2 {
		t.Errorf("Expected Pass=2, got %d", err.Pass)
	}
	if err.Attempt != 3 {
		t.Errorf("Expected Attempt=3, got %d", err.Attempt)
	}
}

func TestWrapErrorMapsErrno(t *testing.T) {
	inner := syscall.ENOENT
	err := WrapError("open_device", "/dev/sdx", inner)

	if err.Kind != ErrKindDeviceNotFound {
		t.Errorf("Expected Kind=ErrKindDeviceNotFound, got %s", err.Kind)
	}
	if err.Errno != syscall.ENOENT {
		t.Errorf("Expected Errno=ENOENT, got %v", err.Errno)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Error("Expected wrapped error to satisfy errors.Is for ENOENT")
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if WrapError("op", "/dev/sdx", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestWrapErrorPreservesStructuredError(t *testing.T) {
	inner := NewPassError("sequential_write", "/dev/sdx", "zero", 0, 0, 1, ErrKindTimeout, "slow device")
	wrapped := WrapError("sequential_write_retry", "/dev/sdx", inner)

	if wrapped.Kind != ErrKindTimeout {
		t.Errorf("Expected Kind to carry over, got %s", wrapped.Kind)
	}
	if wrapped.Pass != 0 {
		t.Errorf("Expected Pass to carry over, got %d", wrapped.Pass)
	}
}

func TestIsKind(t *testing.T) {
	err := NewError("TEST", ErrKindTimeout, "operation timed out")

	if !IsKind(err, ErrKindTimeout) {
		t.Error("IsKind should return true for matching kind")
	}
	if IsKind(err, ErrKindIOError) {
		t.Error("IsKind should return false for non-matching kind")
	}
	if IsKind(nil, ErrKindTimeout) {
		t.Error("IsKind should return false for nil error")
	}
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected WipeErrorKind
	}{
		{syscall.ENOENT, ErrKindDeviceNotFound},
		{syscall.EBUSY, ErrKindDeviceBusy},
		{syscall.EINVAL, ErrKindInvalidParameters},
		{syscall.EPERM, ErrKindPermissionDenied},
		{syscall.ENOMEM, ErrKindInsufficientMemory},
		{syscall.ETIMEDOUT, ErrKindTimeout},
		{syscall.ENXIO, ErrKindDeviceOffline},
	}

	for _, tc := range testCases {
		got := mapErrnoToKind(tc.errno)
		if got != tc.expected {
			t.Errorf("mapErrnoToKind(%v) = %s, want %s", tc.errno, got, tc.expected)
		}
	}
}
