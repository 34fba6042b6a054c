package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapToGRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", fmt.Errorf("%w: missing recipient", ErrValidation), codes.InvalidArgument},
		{"storage", fmt.Errorf("%w: disk full", ErrStorageUnavailable), codes.Unavailable},
		{"identity", ErrMissingIdentity, codes.Unauthenticated},
		{"mismatch", ErrIdentityMismatch, codes.PermissionDenied},
		{"unknown", fmt.Errorf("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(MapToGRPCError(tt.err))
			require.True(t, ok)
			require.Equal(t, tt.code, st.Code())
		})
	}
}

func TestMapToGRPCError_Nil(t *testing.T) {
	require.NoError(t, MapToGRPCError(nil))
}

func TestHTTPStatus(t *testing.T) {
	req := require.New(t)
	req.Equal(http.StatusBadRequest, HTTPStatus(fmt.Errorf("%w: text", ErrValidation)))
	req.Equal(http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("%w: closed", ErrStorageUnavailable)))
	req.Equal(http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}
