package handler

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/l3agi/l3server/internal/audit"
	"github.com/l3agi/l3server/internal/middleware"
)

// AuditPublisher records auth events without blocking the request.
type AuditPublisher interface {
	PublishAsync(ctx context.Context, event audit.Event)
}

// recordAudit stamps event with request metadata and publishes it. A nil
// publisher disables auditing.
func recordAudit(p AuditPublisher, r *http.Request, event audit.Event) {
	if p == nil {
		return
	}
	now := time.Now()
	event.OccurredAt = now.UnixMilli()
	event.RequestID = middleware.GetRequestID(r.Context())
	event.ClientHash = audit.ClientHash(clientIP(r), r.UserAgent(), now)
	p.PublishAsync(r.Context(), event)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
