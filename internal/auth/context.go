package auth

import (
	"context"

	"github.com/fekuna/omnipos-inventory-ledger/internal/model"
	"github.com/labstack/echo/v4"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

type ctxKey struct{}

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFromContext returns the actor set by Middleware. The zero Actor has no
// tenant, which every tenant-scoped operation rejects.
func ActorFromContext(ctx context.Context) model.Actor {
	if actor, ok := ctx.Value(ctxKey{}).(model.Actor); ok {
		return actor
	}
	return model.Actor{}
}

func GetTenantID(ctx context.Context) string {
	return ActorFromContext(ctx).TenantID
}

// Middleware copies the tenant and user headers set by the API gateway into
// the request context. Authentication itself happens upstream.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			actor := model.Actor{
				TenantID: req.Header.Get(HeaderTenantID),
				UserID:   req.Header.Get(HeaderUserID),
			}
			c.SetRequest(req.WithContext(WithActor(req.Context(), actor)))
			return next(c)
		}
	}
}
