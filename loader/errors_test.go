package loader

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadErrorMessage(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		stage Stage
		want  string
	}{
		{stage: StageFetch, want: "failed to fetch schema from src.pb: boom"},
		{stage: StageDecode, want: "failed to process schema from src.pb: boom"},
		{stage: StageBuild, want: "failed to process schema from src.pb: boom"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			err := newLoadError("src.pb", tt.stage, cause)
			assert.EqualError(t, err, tt.want)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestLoadErrorUnwrap(t *testing.T) {
	err := error(newLoadError("x", StageFetch, fs.ErrNotExist))

	var le *LoadError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, StageFetch, le.Stage)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
