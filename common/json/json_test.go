package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	v := map[string]any{"a": 1}

	b, err := Encode(v, false)
	assert.Nil(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	b, err = Encode(v, true)
	assert.Nil(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))
	assert.True(t, Valid(b))
	assert.False(t, Valid([]byte("{a:")))

	var out map[string]int
	assert.Nil(t, Unmarshal(b, &out))
	assert.Equal(t, 1, out["a"])
}
