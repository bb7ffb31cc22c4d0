package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/favbox/insaner/common/ut"
	"github.com/favbox/insaner/protocol"
	"github.com/favbox/insaner/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func panicking(context.Context) (*protocol.Response, error) {
	panic("测试")
}

func TestRecovery(t *testing.T) {
	req := ut.NewRequest(consts.MethodGet, "/boom", nil)
	resp, err := Recovery().Handle(context.Background(), req, panicking)
	assert.Nil(t, resp)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "测试", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "恐慌已恢复：测试", err.Error())
	assert.False(t, protocol.IsForced(err))
}

func TestRecoveryPassThrough(t *testing.T) {
	req := ut.NewRequest(consts.MethodGet, "/", nil)
	want, _ := protocol.NewTextResponse("ok", nil)
	resp, err := Recovery().Handle(context.Background(), req, func(context.Context) (*protocol.Response, error) {
		return want, nil
	})
	assert.Nil(t, err)
	assert.Equal(t, want, resp)
}

func TestWithRecoveryHandler(t *testing.T) {
	req := ut.NewRequest(consts.MethodGet, "/boom", nil)
	resp, err := Recovery(WithRecoveryHandler(myRecoveryHandler)).Handle(context.Background(), req, panicking)
	require.Nil(t, err)

	w := ut.NewRecorder()
	require.Nil(t, resp.Send(context.Background(), w, req))
	assert.Equal(t, consts.StatusNotImplemented, w.Code)
	assert.Equal(t, `{"msg":"测试"}`, w.Body.String())
}

func TestStack(t *testing.T) {
	lines := [][]byte{[]byte("  a  "), []byte("b")}
	assert.Equal(t, []byte("a"), sourceLine(lines, 1))
	assert.Equal(t, unknown, sourceLine(lines, 0))
	assert.Equal(t, unknown, sourceLine(lines, 3))

	assert.Equal(t, "(*Server).Spin", shortName("github.com/favbox/insaner/app/server.(*Server).Spin"))
	assert.Equal(t, "TestStack", shortName("recovery.TestStack"))
	assert.Equal(t, "???", shortName(""))

	_, err := Recovery().Handle(context.Background(), ut.NewRequest(consts.MethodGet, "/", nil), panicking)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, string(pe.Stack), "recovery_test.go")
	assert.Contains(t, string(pe.Stack), `panicking: panic("测试")`)
}
