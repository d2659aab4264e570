package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		page, limit string
		want        Page
	}{
		{"", "", Page{1, 20}},
		{"3", "10", Page{3, 10}},
		{"-1", "abc", Page{1, 20}},
		{"2", "500", Page{2, 100}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePage(tt.page, tt.limit, 20, 100))
	}
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Offset())
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret!", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := GenerateTempPassword(4)
	require.NoError(t, err)
	assert.Len(t, pw, 8)
}
