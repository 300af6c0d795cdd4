package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "many comments", src: "/*start*/he/*\n*/llo /**/wo/**/rld/* *//*end*/", want: "hello world"},
		{name: "no comments", src: "a + b", want: "a + b"},
		{name: "inside operator", src: "a &/*c*/& b", want: "a && b"},
		{name: "only a comment", src: "/* nothing */", want: ""},
		{name: "star outside comment", src: "a * b /* x */", want: "a * b "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripComments(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := StripComments(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestStripComments_Mismatch(t *testing.T) {
	for _, src := range []string{
		"/*/",
		"/* open",
		"close */",
		"/* a /* b */",
		"/* a */ */",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := StripComments(src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCommentMismatch)
		})
	}
}
