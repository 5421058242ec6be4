// Package safego runs post-commit background work (notifications, audit shipping) without letting
// a panic take down the server.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a new goroutine. A panic is recovered and logged with the task name and stack.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine",
					"task", task, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
