package auth

import (
	"context"
	"fmt"
	"hive-chat/errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// CheckIdentity rejects a claimed user id that differs from the authenticated one.
// Without an authenticated user in ctx every claim is accepted.
func CheckIdentity(ctx context.Context, claimed string) error {
	userID, ok := UserIDFromContext(ctx)
	if ok && userID != claimed {
		return fmt.Errorf("%w: token is for %q", errors.ErrIdentityMismatch, userID)
	}
	return nil
}

func (m *TokenManager) authenticate(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: authorization token is missing", errors.ErrUnauthenticated)
	}
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, UserIDKey, claims.UserID), nil
}

func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimPrefix(values[0], "Bearer ")
}

// UnaryInterceptor validates the bearer token of every unary call and stores
// the user id in the handler's context.
func UnaryInterceptor(tokens *TokenManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !tokens.Enabled() {
			return handler(ctx, req)
		}
		newCtx, err := tokens.authenticate(ctx, bearerFromMetadata(ctx))
		if err != nil {
			return nil, errors.MapToGRPCError(err)
		}
		return handler(newCtx, req)
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }

func StreamInterceptor(tokens *TokenManager) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !tokens.Enabled() {
			return handler(srv, ss)
		}
		ctx, err := tokens.authenticate(ss.Context(), bearerFromMetadata(ss.Context()))
		if err != nil {
			return errors.MapToGRPCError(err)
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

// Middleware authenticates HTTP requests. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the "token" query parameter.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			ctx, err := tokens.authenticate(r.Context(), tokenString)
			if err != nil {
				http.Error(w, err.Error(), errors.HTTPStatus(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
