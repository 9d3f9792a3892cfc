package wipecore

import (
	"context"
	"sync"
)

// mockShardSize mirrors the sharded-locking granularity used for
// parallel I/O against large in-memory devices: fine enough that
// concurrent readers/writers at different offsets don't contend, coarse
// enough to keep per-device lock overhead low.
const mockShardSize = 64 * 1024

// MockDevice is an in-memory block device for tests and wipebench: it
// implements the same ReadAt/WriteAt/Discard/Sync surface a real block
// device exposes, with sharded locking for parallel access and call
// counters for assertions.
type MockDevice struct {
	data   []byte
	size   int64
	shards []sync.RWMutex

	mu         sync.RWMutex
	closed     bool
	synced     bool
	readCalls  int
	writeCalls int
	syncCalls  int
}

// NewMockDevice creates an in-memory device of the given size, zero-filled.
func NewMockDevice(size int64) *MockDevice {
	numShards := (size + mockShardSize - 1) / mockShardSize
	if numShards < 1 {
		numShards = 1
	}
	return &MockDevice{
		data:   make([]byte, size),
		size:   size,
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *MockDevice) shardRange(off, length int64) (start, end int) {
	start = int(off / mockShardSize)
	end = int((off + length - 1) / mockShardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// ReadAt reads into p starting at off, short-reading at the device end.
func (m *MockDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.readCalls++
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return 0, NewError("MockDevice.ReadAt", ErrKindDeviceNotFound, "device closed")
	}
	if off >= m.size {
		return 0, nil
	}
	if available := m.size - off; int64(len(p)) > available {
		p = p[:available]
	}

	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	n := copy(p, m.data[off:off+int64(len(p))])
	for i := start; i <= end; i++ {
		m.shards[i].RUnlock()
	}
	return n, nil
}

// WriteAt writes p starting at off, refusing writes past the device end.
func (m *MockDevice) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.writeCalls++
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return 0, NewError("MockDevice.WriteAt", ErrKindDeviceNotFound, "device closed")
	}
	if off >= m.size {
		return 0, NewError("MockDevice.WriteAt", ErrKindInvalidParameters, "write beyond end of device")
	}
	if available := m.size - off; int64(len(p)) > available {
		p = p[:available]
	}

	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].Lock()
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		m.shards[i].Unlock()
	}
	return n, nil
}

// Discard zero-fills [offset, offset+length), clamped to the device size.
func (m *MockDevice) Discard(offset, length int64) error {
	if offset >= m.size {
		return nil
	}
	end := offset + length
	if end > m.size {
		end = m.size
	}

	start, stop := m.shardRange(offset, end-offset)
	for i := start; i <= stop; i++ {
		m.shards[i].Lock()
	}
	for i := offset; i < end; i++ {
		m.data[i] = 0
	}
	for i := start; i <= stop; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

// Sync is a no-op for the in-memory device; it only records the call
// for IsSynced assertions.
func (m *MockDevice) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	m.synced = true
	return nil
}

// Size returns the device's addressable size in bytes.
func (m *MockDevice) Size() int64 { return m.size }

// Close releases the backing storage; subsequent reads/writes fail.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockDevice) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// IsSynced reports whether Sync has ever been called.
func (m *MockDevice) IsSynced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.synced
}

// CallCounts returns the number of times each method has been invoked,
// for test assertions on I/O activity without instrumenting the caller.
func (m *MockDevice) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{"read": m.readCalls, "write": m.writeCalls, "sync": m.syncCalls}
}

// MockDeviceInventory is a fixed, in-memory DeviceInventory for tests:
// Enumerate/Probe serve from a preloaded map, Unfreeze always succeeds
// unless overridden.
type MockDeviceInventory struct {
	Devices       map[string]DeviceDescriptor
	UnfreezeErr   error
	UnfreezeCalls []string
	mu            sync.Mutex
}

// NewMockDeviceInventory builds a MockDeviceInventory from the given descriptors.
func NewMockDeviceInventory(devices ...DeviceDescriptor) *MockDeviceInventory {
	byPath := make(map[string]DeviceDescriptor, len(devices))
	for _, d := range devices {
		byPath[d.Path] = d
	}
	return &MockDeviceInventory{Devices: byPath}
}

func (m *MockDeviceInventory) Enumerate(ctx context.Context) ([]DeviceDescriptor, error) {
	out := make([]DeviceDescriptor, 0, len(m.Devices))
	for _, d := range m.Devices {
		out = append(out, d)
	}
	return out, nil
}

func (m *MockDeviceInventory) Probe(ctx context.Context, path string) (DeviceDescriptor, error) {
	d, ok := m.Devices[path]
	if !ok {
		return DeviceDescriptor{}, NewError("MockDeviceInventory.Probe", ErrKindDeviceNotFound, path)
	}
	return d, nil
}

func (m *MockDeviceInventory) Unfreeze(ctx context.Context, path string) error {
	m.mu.Lock()
	m.UnfreezeCalls = append(m.UnfreezeCalls, path)
	m.mu.Unlock()
	return m.UnfreezeErr
}

var _ DeviceInventory = (*MockDeviceInventory)(nil)
