package conversations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "John Doe", want: "JD"},
		{name: "ada ibrahim okafor", want: "AI"},
		{name: "Chike", want: "C"},
		{name: "", want: ""},
		{name: "Émile  Zola", want: "É"},
		{name: "Demo Client 7", want: "DC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Initials(tt.name), tt.name)
	}
}

func TestAgo(t *testing.T) {
	const now = int64(10 * 24 * 60 * 60 * 1000)
	const minute = int64(60 * 1000)

	tests := []struct {
		ts   int64
		want string
	}{
		{ts: 0, want: ""},
		{ts: now, want: "now"},
		{ts: now - 20*1000, want: "now"},
		{ts: now - 5*minute, want: "5m"},
		{ts: now - 59*minute, want: "59m"},
		{ts: now - 60*minute, want: "1h"},
		{ts: now - 23*60*minute, want: "23h"},
		{ts: now - 3*24*60*minute, want: "3d"},
		{ts: now + minute, want: "now"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ago(tt.ts, now), "ts=%d", tt.ts)
	}
}
