package messaging

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches replies to the messenger registered for the address
// prefix of reply.To.
type Router struct {
	routes   map[string]Messenger
	fallback Messenger
}

func NewRouter(fallback Messenger) *Router {
	return &Router{routes: make(map[string]Messenger), fallback: fallback}
}

func (r *Router) Handle(prefix string, m Messenger) {
	r.routes[prefix] = m
}

func (r *Router) Send(ctx context.Context, reply Reply) error {
	for prefix, m := range r.routes {
		if strings.HasPrefix(reply.To, prefix) {
			return m.Send(ctx, reply)
		}
	}
	if r.fallback != nil {
		return r.fallback.Send(ctx, reply)
	}
	return fmt.Errorf("no messenger for address %q", reply.To)
}
