package logging

import (
	"context"

	"github.com/google/uuid"
)

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return uuid.NewString()
}

func GetRequestIDFromCtx(ctx context.Context) string {
	s, _ := ctx.Value(reqKey).(string)
	return s
}

func MakeContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, reqKey, requestID)
}

func MakeContextWithNewRequestID(ctx context.Context) context.Context {
	return MakeContextWithRequestID(ctx, NewRequestID())
}
