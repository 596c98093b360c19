package hashutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSHA256(t *testing.T) {
	digest, err := StreamSHA256(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", digest)
}

func TestStreamSHA256LargerThanChunk(t *testing.T) {
	data := strings.Repeat("a", chunkSize*3+17)
	digest, err := StreamSHA256(strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, digest, 64)
}

func TestTrimMargin(t *testing.T) {
	in := "keep|drop\nno marker\n|only drop"
	out := TrimMargin(in, '|')
	assert.Equal(t, "drop\nno marker\nonly drop", out)
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`a b c`, []string{"a", "b", "c"}},
		{`"a b" c`, []string{"a b", "c"}},
		{`'a b' "c d"`, []string{"a b", "c d"}},
		{`a\ b c`, []string{`a\`, "b", "c"}},
		{`"esc \" quote"`, []string{`esc " quote`}},
		{`"unterminated`, []string{"unterminated"}},
		{"", nil},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Tokenize(c.in), "input=%q", c.in)
	}
}
