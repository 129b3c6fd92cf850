package utils

import (
	"context"
)

type contextKey string

const (
	ActorKey contextKey = "actor"
)

// SetActorContext menyimpan identitas pemanggil admin ke context
func SetActorContext(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActorFromContext mendapatkan actor dari context, "system" bila tidak ada
func GetActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(ActorKey).(string)
	if !ok || actor == "" {
		return "system"
	}
	return actor
}
