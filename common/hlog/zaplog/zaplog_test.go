package zaplog

import (
	"bytes"
	"context"
	"testing"

	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/common/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decode(t *testing.T, b *bytes.Buffer) []map[string]any {
	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.Nil(t, json.Unmarshal(line, &m))
		entries = append(entries, m)
	}
	return entries
}

func TestLogger(t *testing.T) {
	var b bytes.Buffer
	l := New(WithOutput(&b), WithFields(zap.String("service", "insaner")))

	l.Debugf("隐藏 %d", 1)
	l.Infof("你好 %s", "世界")
	l.Notice("注意")
	l.CtxWarnf(hlog.WithTag(context.Background(), "req-1"), "警告 %d", 2)

	entries := decode(t, &b)
	require.Len(t, entries, 3)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "你好 世界", entries[0]["msg"])
	assert.Equal(t, "insaner", entries[0]["service"])
	assert.Equal(t, "注意", entries[1]["msg"])
	assert.Equal(t, "warn", entries[2]["level"])
	assert.Equal(t, "req-1", entries[2]["tag"])
}

func TestSetLevelAndOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New(WithOutput(&first))
	l.SetLevel(hlog.LevelTrace)
	l.Tracef("跟踪")

	l.SetOutput(&second)
	l.SetLevel(hlog.LevelError)
	l.Warn("丢弃")
	l.Error("错误")

	assert.Len(t, decode(t, &first), 1)
	entries := decode(t, &second)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "错误", entries[0]["msg"])
}

func TestConsole(t *testing.T) {
	var b bytes.Buffer
	l := New(WithOutput(&b), WithConsole())
	l.Info("控制台")
	assert.Contains(t, b.String(), "info")
	assert.Contains(t, b.String(), "控制台")
	assert.NotNil(t, l.Zap())
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, zapLevel(hlog.LevelTrace))
	assert.Equal(t, zap.InfoLevel, zapLevel(hlog.LevelNotice))
	assert.Equal(t, zap.WarnLevel, zapLevel(hlog.LevelWarn))
	assert.Equal(t, zap.ErrorLevel, zapLevel(hlog.LevelError))
	assert.Equal(t, zap.FatalLevel, zapLevel(hlog.LevelFatal))
}
