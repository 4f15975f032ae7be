package chat

import (
	"context"
	"errors"
	"runtime/debug"

	"critique-backend/internal/shared/metrics"
	"critique-backend/internal/shared/telemetry"
)

// Guard turns handler errors and panics into an apology reply. Malformed events still
// surface as ErrBadEvent so the transport can reject them.
func Guard(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, ev Event) (replies []Reply, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.IncChatFailure()
				telemetry.Error("chat.panic", map[string]any{
					"user_id": ev.UserID,
					"type":    string(ev.Type),
					"error":   rec,
					"stack":   string(debug.Stack()),
				})
				replies, err = []Reply{{Text: msgApology}}, nil
			}
		}()

		replies, err = next(ctx, ev)
		if err == nil || errors.Is(err, ErrBadEvent) {
			return replies, err
		}
		metrics.IncChatFailure()
		telemetry.Error("chat.handler_failed", map[string]any{
			"user_id": ev.UserID,
			"type":    string(ev.Type),
			"error":   err,
		})
		return []Reply{{Text: msgApology}}, nil
	}
}
