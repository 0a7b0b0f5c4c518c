package logbridge

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bonjour/pkg/types"
)

type logLine struct {
	tag types.Tag
	msg string
}

// recorder 记录所有转发到回调的日志
type recorder struct {
	lines []logLine
}

func (r *recorder) sink(tag types.Tag, msg string) {
	r.lines = append(r.lines, logLine{tag: tag, msg: msg})
}

// ============================================================================
//                              级别映射测试
// ============================================================================

func TestTagForSeverity(t *testing.T) {
	cases := []struct {
		sev  types.Severity
		want types.Tag
	}{
		{types.SeverityMsg, types.TagWarning},
		{types.SeverityOperation, types.TagInfo},
		{types.SeveritySPS, types.TagVerbose},
		{types.SeverityInfo, types.TagVerbose},
		{types.SeverityDebug, types.TagDebug},
		{types.Severity(-1), types.TagDebug},
		{types.Severity(99), types.TagDebug},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TagForSeverity(c.sev), "severity %d", c.sev)
	}
}

func TestTagForSeverity_ClosedSet(t *testing.T) {
	allowed := map[types.Tag]bool{
		types.TagWarning: true, types.TagInfo: true, types.TagVerbose: true, types.TagDebug: true,
	}
	for sev := types.Severity(-10); sev < 20; sev++ {
		first := TagForSeverity(sev)
		assert.True(t, allowed[first], "severity %d", sev)
		assert.Equal(t, first, TagForSeverity(sev), "映射必须确定")
	}
}

func TestTagForEvent(t *testing.T) {
	assert.Equal(t, types.TagWarning, TagForEvent(types.EventError))
	assert.Equal(t, types.TagInfo, TagForEvent(types.EventWarning))
	assert.Equal(t, types.TagVerbose, TagForEvent(types.EventInformation))
	assert.Equal(t, types.TagDebug, TagForEvent(types.EventSuccess))
	assert.Equal(t, types.TagDebug, TagForEvent(types.EventType(0x40)))
}

func TestSeverityForLevel(t *testing.T) {
	assert.Equal(t, types.SeverityMsg, SeverityForLevel(slog.LevelError))
	assert.Equal(t, types.SeverityMsg, SeverityForLevel(slog.LevelWarn))
	assert.Equal(t, types.SeverityOperation, SeverityForLevel(slog.LevelInfo))
	assert.Equal(t, types.SeverityInfo, SeverityForLevel(slog.LevelDebug))
	assert.Equal(t, types.SeverityDebug, SeverityForLevel(slog.LevelDebug-4))
}

// ============================================================================
//                              回调转发测试
// ============================================================================

func TestBridge_NoSinkDiscards(t *testing.T) {
	b := New()
	assert.Nil(t, b.Sink())
	assert.NotPanics(t, func() {
		b.Log(types.SeverityMsg, "dropped")
		b.Log(types.Severity(42), "")
		b.ReportStatus(types.EventError, "dropped")
	})
}

func TestBridge_SetSinkReturnsPrevious(t *testing.T) {
	b := New()
	first, second := &recorder{}, &recorder{}

	prev := b.SetSink(first.sink)
	assert.Nil(t, prev)

	prev = b.SetSink(second.sink)
	require.NotNil(t, prev)

	// 恢复旧回调
	b.SetSink(prev)
	b.Log(types.SeverityOperation, "hello")
	assert.Len(t, first.lines, 1)
	assert.Empty(t, second.lines)

	// nil 关闭转发
	b.SetSink(nil)
	b.Log(types.SeverityOperation, "ignored")
	assert.Len(t, first.lines, 1)
}

func TestBridge_SeriousErrorForwardedOnce(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.SetSink(rec.sink)

	b.Log(types.SeverityMsg, "mDNS_Init: socket failed 98")

	require.Len(t, rec.lines, 1)
	assert.Equal(t, types.TagWarning, rec.lines[0].tag)
	assert.Equal(t, "mDNS_Init: socket failed 98", rec.lines[0].msg)
}

func TestBridge_EmptyMessageAndUnknownSeverity(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.SetSink(rec.sink)

	b.Log(types.Severity(1000), "")

	require.Len(t, rec.lines, 1)
	assert.Equal(t, types.TagDebug, rec.lines[0].tag)
	assert.Equal(t, "", rec.lines[0].msg)
}

// ============================================================================
//                              slog Handler 测试
// ============================================================================

func TestHandler_ForwardsToSinkAndNext(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.SetSink(rec.sink)

	buf := &bytes.Buffer{}
	next := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(b.Handler(next)).With("op", "nat")

	log.Warn("启动失败", "code", -65540)
	log.Debug("细节")

	require.Len(t, rec.lines, 2)
	assert.Equal(t, types.TagWarning, rec.lines[0].tag)
	assert.Equal(t, "启动失败 op=nat code=-65540", rec.lines[0].msg)
	assert.Equal(t, types.TagVerbose, rec.lines[1].tag)

	// 下游只收到 Info 及以上
	assert.Contains(t, buf.String(), "启动失败")
	assert.NotContains(t, buf.String(), "细节")
}

func TestHandler_Groups(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.SetSink(rec.sink)

	log := slog.New(b.Handler(nil)).WithGroup("nat")
	log.Info("result", slog.Group("ext", "port", 9090))

	require.Len(t, rec.lines, 1)
	assert.Equal(t, "result nat.ext.port=9090", rec.lines[0].msg)
}

func TestHandler_DisabledWithoutSinkOrNext(t *testing.T) {
	b := New()
	h := b.Handler(nil)
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))

	rec := &recorder{}
	b.SetSink(rec.sink)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}
