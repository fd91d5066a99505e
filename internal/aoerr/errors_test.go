package aoerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	cause := errors.New("bad superblock")
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"no session", ErrNoActiveSession, http.StatusBadRequest, "no active session"},
		{"wrapped no session", fmt.Errorf("resolve: %w", ErrNoActiveSession), http.StatusBadRequest, "no active session"},
		{"range", CheckIndex("frame_index", 12, 10), http.StatusBadRequest, "frame_index 12 out of range (0 to 9)"},
		{"param", InvalidParameter("unknown scale %q", "cubic"), http.StatusBadRequest, `unknown scale "cubic"`},
		{"load", LoadFailure("/tmp/x.h5", cause), http.StatusInternalServerError, "failed to load dataset"},
		{"transform", TransformFailure(cause), http.StatusInternalServerError, "failed to apply interval or scale"},
		{"other", cause, http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.msg, PublicMessage(tt.err))
		})
	}
}

func TestCheckIndex(t *testing.T) {
	t.Parallel()
	assert.NoError(t, CheckIndex("wfs_index", 0, 1))
	assert.Error(t, CheckIndex("wfs_index", -1, 1))
	assert.Error(t, CheckIndex("wfs_index", 1, 1))

	err := CheckIndex("loop_index", 0, 0)
	assert.EqualError(t, err, "loop_index 0 out of range (collection is empty)")
}

func TestLoadFailure_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("eof")
	err := LoadFailure("a.h5", cause)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsClientError(err))
	assert.True(t, IsClientError(CheckIndex("x", 3, 1)))
}
