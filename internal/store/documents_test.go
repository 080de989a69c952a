package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"README.md", "README.md"},
		{"foo_bar.go", `foo\_bar.go`},
		{"100%_done.md", `100\%\_done.md`},
		{`a\b_c`, `a\\b\_c`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), tt.in)
	}
}

func TestEscapedPatternMatchesOnlyOwnChunks(t *testing.T) {
	// The pruning pattern for foo_bar.go must not cover foo-bar.go's
	// chunk rows once the underscore is escaped.
	pattern := escapeLike("foo_bar.go") + `\_part\_%`
	assert.Equal(t, `foo\_bar.go\_part\_%`, pattern)
}
