package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"slotline/backend/internal/service/scheduling"
)

const (
	RequestIDMetadataKey = "x-request-id"
	actorIDMetadataKey   = "x-actor-id"
	actorRoleMetadataKey = "x-actor-role"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// UnaryServerRequestIDInterceptor reads the request id from incoming metadata,
// generating one when absent, stores it in the context and echoes it back in
// the response headers.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := firstMetadata(ctx, RequestIDMetadataKey)
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(context.WithValue(ctx, ctxKeyRequestID, id), req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func idempotencyKey(ctx context.Context) string {
	if key := firstMetadata(ctx, "idempotency-key"); key != "" {
		return key
	}
	return firstMetadata(ctx, "x-idempotency-key")
}

// actorFromContext reads who is calling from metadata. Without a role header
// the caller is treated as a client.
func actorFromContext(ctx context.Context) (scheduling.Actor, error) {
	actor := scheduling.Actor{Role: scheduling.RoleClient}
	if raw := firstMetadata(ctx, actorRoleMetadataKey); raw != "" {
		role, ok := scheduling.ParseRole(strings.ToLower(raw))
		if !ok {
			return scheduling.Actor{}, status.Error(codes.InvalidArgument, "x-actor-role must be one of client, provider, admin, system")
		}
		actor.Role = role
	}
	if raw := firstMetadata(ctx, actorIDMetadataKey); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scheduling.Actor{}, status.Error(codes.InvalidArgument, "x-actor-id must be a UUID")
		}
		actor.ID = id
	}
	return actor, nil
}
