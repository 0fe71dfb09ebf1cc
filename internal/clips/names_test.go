package clips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripBrackets(t *testing.T) {
	assert.Equal(t, "Npc:42", StripBrackets("[Npc:42]"))
	assert.Equal(t, "Npc:42", StripBrackets("Npc:42"))
	assert.Equal(t, "[Npc:42", StripBrackets("[Npc:42"))
	assert.Equal(t, "", StripBrackets("[]"))
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"bracketed", "[Npc:42]", 42},
		{"bare", "Npc:42", 42},
		{"last colon wins", "ns:Npc:7", 7},
		{"no colon", "19", 19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseIdentityErrors(t *testing.T) {
	for _, in := range []string{"[Npc:abc]", "Npc:", "", "[Npc:4.2]"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseIdentity(in)
			assert.Error(t, err)
		})
	}
}
