// Package system runs lifecycle-managed components such as the HTTP server
// and the housekeeping scheduler.
package system

import "context"

// Service is a component the Manager starts and stops. Start must not block;
// long-running work belongs in a goroutine that Stop ends.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
