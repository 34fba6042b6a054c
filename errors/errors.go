package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrValidation         = fmt.Errorf("validation error")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrMissingIdentity    = fmt.Errorf("connection is not identified")
	ErrUnknownEvent       = fmt.Errorf("unknown event")
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrIdentityMismatch   = fmt.Errorf("identity does not match token")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrChannelClosed      = fmt.Errorf("channel closed")
	ErrChannelFull        = fmt.Errorf("channel buffer full")
)

// MapToGRPCError translates domain failures into gRPC status errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case stderrors.Is(err, ErrMissingIdentity), stderrors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case stderrors.Is(err, ErrIdentityMismatch):
		return status.Error(codes.PermissionDenied, err.Error())
	case stderrors.Is(err, ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stderrors.Is(err, ErrUserAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// HTTPStatus returns the response code for a failure on the REST boundary.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUnauthenticated), stderrors.Is(err, ErrMissingIdentity):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrIdentityMismatch):
		return http.StatusForbidden
	case stderrors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
