package responder

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bonjour/pkg/types"
)

func TestGetProperty(t *testing.T) {
	e := newFakeEngine()
	r := newRunning(t, e)

	t.Run("DaemonVersion", func(t *testing.T) {
		buf := make([]byte, 8)
		var size uint32

		require.NoError(t, r.GetProperty(PropertyDaemonVersion, buf, &size))
		assert.Equal(t, uint32(4), size)
		assert.Equal(t, e.version, binary.NativeEndian.Uint32(buf))
	})

	t.Run("未知属性", func(t *testing.T) {
		buf := make([]byte, 4)
		size := uint32(99)

		require.NoError(t, r.GetProperty("NoSuchProperty", buf, &size))
		assert.Zero(t, size)
	})

	t.Run("非法参数", func(t *testing.T) {
		buf := make([]byte, 4)
		var size uint32

		assert.ErrorIs(t, r.GetProperty("", buf, &size), types.ErrBadParam)
		assert.ErrorIs(t, r.GetProperty(PropertyDaemonVersion, nil, &size), types.ErrBadParam)
		assert.ErrorIs(t, r.GetProperty(PropertyDaemonVersion, buf, nil), types.ErrBadParam)
		assert.ErrorIs(t, r.GetProperty(PropertyDaemonVersion, buf[:2], &size), types.ErrBadParam)
	})

	t.Run("未初始化也可查询", func(t *testing.T) {
		idle, err := New(newFakeEngine(), WithDriverKind(DriverPoll))
		require.NoError(t, err)

		buf := make([]byte, 4)
		var size uint32
		require.NoError(t, idle.GetProperty(PropertyDaemonVersion, buf, &size))
		assert.Equal(t, uint32(4), size)
	})
}

func TestUnsupportedOperations(t *testing.T) {
	e := newFakeEngine()
	r := newRunning(t, e)

	ref, err := r.CreateConnection()
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Nil(t, ref)

	rec, err := r.RegisterRecord(nil, 0, 0, "host.local.", 1, 1, []byte{127, 0, 0, 1}, 120, nil, nil)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Nil(t, rec)

	rec, err = r.AddRecord(nil, 0, 16, []byte("txt"), 120)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Nil(t, rec)

	assert.ErrorIs(t, r.UpdateRecord(nil, nil, 0, nil, 0), types.ErrUnsupported)
	assert.ErrorIs(t, r.RemoveRecord(nil, nil, 0), types.ErrUnsupported)
	assert.ErrorIs(t, r.ReconfirmRecord(0, 0, "host.local.", 1, 1, nil), types.ErrUnsupported)

	called := false
	ref, err = r.EnumerateDomains(0, 0, func(ServiceRef, types.Flags, uint32, types.ErrorCode, string, any) {
		called = true
	}, nil)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Nil(t, ref)

	r.Process(0)
	assert.False(t, called)
	assert.Empty(t, e.started)
	assert.Empty(t, e.stopped)
}
