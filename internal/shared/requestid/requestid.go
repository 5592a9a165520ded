// Package requestid carries the request correlation id through a context.
// The same id ends up in the access log, error envelopes and outbox events,
// which is how one reply is traced from HTTP to the notification row.
package requestid

import "context"

type key struct{}

func With(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key{}, id)
}

func Get(ctx context.Context) string {
	id, _ := ctx.Value(key{}).(string)
	return id
}
