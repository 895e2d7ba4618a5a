// Command pumpsubscriber connects to the pump.fun-style NATS-over-WebSocket
// broker, dispatches coin-creation/coin-image-update events, and races a
// hedged IPFS fetch for every image update. Graceful-shutdown wiring
// (context+cancel+WaitGroup+signal.Notify) is adapted from the teacher's
// internal/server/server.go Start/Shutdown pair.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pumpsubscriber/internal/auth"
	"pumpsubscriber/internal/config"
	"pumpsubscriber/internal/dispatch"
	"pumpsubscriber/internal/fetch"
	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
	"pumpsubscriber/internal/protocol"
)

func main() {
	cfg := config.Load()
	printer := logging.NewStdoutPrinter(cfg.LogTSPrefix)
	config.LogStartupConfig(printer, cfg)
	logJWTDiagnostic(printer, cfg)

	m := metrics.New()
	metrics.Serve(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	sampler := metrics.NewSystemSampler(m, printer)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Run(ctx, cfg.SystemMetricsInterval)
	}()

	engine := fetch.NewEngine(cfg.Fetch, printer, m)

	disp := dispatch.New(printer, m, cfg.Validate, cfg.Fetch.Enabled, func(subject, mint, cid string) {
		engine.Spawn(ctx, subject, mint, cid)
	})

	creds := protocol.Credentials{
		JWT:      cfg.Credentials.JWT,
		Sig:      cfg.Credentials.Sig,
		Token:    cfg.Credentials.Token,
		User:     cfg.Credentials.User,
		Pass:     cfg.Credentials.Pass,
		HasJWT:   cfg.Credentials.HasJWT,
		HasToken: cfg.Credentials.HasToken,
	}
	supervisor := protocol.NewSupervisor(cfg.NATSWSURL, creds, cfg.WSBearer, printer, m)

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx, func(msg protocol.Message) {
			disp.Handle(msg.Subject, msg.Body)
		}, disp.ValidateInfoKeys)
	}()

	waitForShutdown(printer)
	cancel()
	wg.Wait()
}

// logJWTDiagnostic emits an unverified-claims preview of the configured
// NATS JWT, if any, so an operator can sanity-check expiry/subject without
// us ever holding the broker's signing key (internal/auth.DescribeJWT).
func logJWTDiagnostic(printer *logging.Printer, cfg config.Config) {
	if !cfg.Credentials.HasJWT {
		return
	}
	preview := auth.DescribeJWT(cfg.Credentials.JWT)
	fields := []logging.Field{
		logging.F("event", "jwt_diagnostic"),
		logging.F("valid", preview.Valid),
	}
	if preview.Error != "" {
		fields = append(fields, logging.F("error", preview.Error))
	} else {
		fields = append(fields,
			logging.F("subject", preview.Subject),
			logging.F("issuer", preview.Issuer),
		)
		if preview.ExpiresAt != nil {
			fields = append(fields, logging.F("expires_at", preview.ExpiresAt.Format(time.RFC3339)))
		}
	}
	printer.Log(fields...)
}

func waitForShutdown(printer *logging.Printer) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	printer.Log(
		logging.F("event", "shutdown"),
		logging.F("signal", sig.String()),
	)
}
