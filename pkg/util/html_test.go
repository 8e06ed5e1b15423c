package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello</p>", "Hello"},
		{"plain text", "plain text"},
		{"<p><b>Hi</b> there &amp; bye</p>", "Hi there & bye"},
		{"<p><br></p>", ""},
		{"<p>&nbsp;</p>", ""},
		{"<style>p{color:red}</style><p>x</p>", "x"},
		{"<script>alert(1)</script>", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripHTML(tt.in), tt.in)
	}
}

func TestHasVisibleText(t *testing.T) {
	assert.True(t, HasVisibleText("<p>Hello</p>"))
	assert.False(t, HasVisibleText("<p></p>"))
	assert.False(t, HasVisibleText("   "))
	assert.False(t, HasVisibleText("<div>&nbsp; </div>"))
}
