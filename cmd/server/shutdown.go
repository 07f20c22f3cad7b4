package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// stopper is one component torn down at shutdown.
type stopper struct {
	name string
	stop func(context.Context) error
}

// waitDrain blocks for d so the load balancer notices the closed readiness
// gate, or until force fires (a second signal).
func waitDrain(L log.Logger, d time.Duration, force <-chan os.Signal) {
	L.Info(context.Background(), "sleeping for drain period", "drain_seconds", int(d/time.Second))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(context.Background(), "drain period complete")
	case <-force:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

// stopAll stops components in order. Each gets an equal slice of budget,
// bounded by whatever remains of the total. It returns how many failed.
func stopAll(L log.Logger, budget time.Duration, stoppers []stopper) int {
	if len(stoppers) == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	slice := budget / time.Duration(len(stoppers))

	failed := 0
	for _, s := range stoppers {
		if s.stop == nil {
			continue
		}
		cctx, ccancel := context.WithTimeout(ctx, slice)
		if err := s.stop(cctx); err != nil {
			failed++
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}
	return failed
}

// notifySystemd sends READY=1 when started under a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // G704: addr is from NOTIFY_SOCKET set by systemd, unixgram dial has no context variant
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
