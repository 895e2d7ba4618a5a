package fetch

import (
	"context"
	"time"

	"pumpsubscriber/internal/config"
	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
)

// attempt is one gateway task's outcome, fanned in on a shared channel.
type attempt struct {
	kind string // "local" or "public"
	url  string
	res  Result
	err  error
}

// running tracks a live gateway task so its loser handle can be cancelled.
type running struct {
	kind   string
	url    string
	cancel context.CancelFunc
}

// Engine is the Hedged Fetch Engine: races a preferred local gateway
// (given a head-start window) against a pool of public fallbacks.
// Grounded on original_source/src/smart_fetcher.rs's
// smart_ipfs_fetch_and_log / try_spawn_smart_ipfs_fetch.
type Engine struct {
	cfg     config.FetchConfig
	fetcher *GatewayFetcher
	printer *logging.Printer
	metrics *metrics.Metrics
}

// NewEngine builds an Engine from its fetch configuration.
func NewEngine(cfg config.FetchConfig, printer *logging.Printer, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: NewGatewayFetcher(cfg.MaxBytes),
		printer: printer,
		metrics: m,
	}
}

// Spawn launches one hedged-fetch task for (subject, mint, cid) and
// returns immediately. Per spec.md §9's design note, spawned tasks
// outlive the Session that triggered them — callers pass a
// process-lifetime ctx, not a per-connection one.
func (e *Engine) Spawn(ctx context.Context, subject, mint, cid string) {
	go e.run(ctx, subject, mint, cid)
}

func (e *Engine) run(ctx context.Context, subject, mint, cid string) {
	if e.metrics != nil {
		e.metrics.FetchStarted()
	}
	e.printer.Log(
		logging.F("event", "smart_ipfs_fetch_start"),
		logging.F("subject", subject),
		logging.F("mint", mint),
		logging.F("cid", cid),
	)

	results := make(chan attempt, len(e.cfg.PublicGatewayURLs)+1)
	var tasks []running

	localActive := e.cfg.LocalGatewayURL != ""
	if localActive {
		localCtx, cancel := context.WithCancel(ctx)
		tasks = append(tasks, running{kind: "local", url: e.cfg.LocalGatewayURL, cancel: cancel})
		go func() {
			res, err := e.fetcher.Fetch(localCtx, e.cfg.LocalGatewayURL, cid, e.cfg.LocalTimeout)
			results <- attempt{kind: "local", url: e.cfg.LocalGatewayURL, res: res, err: err}
		}()
	}

	threshold := time.NewTimer(e.cfg.FallbackThreshold)
	defer threshold.Stop()

	if localActive {
		select {
		case r := <-results:
			localActive = false
			tasks[0].cancel()
			tasks = tasks[:0]
			if r.err == nil {
				e.succeed(subject, mint, cid, "local_only", r.res)
				return
			}
			e.printer.Log(
				logging.F("event", "smart_ipfs_local_failed"),
				logging.F("subject", subject),
				logging.F("cid", cid),
				logging.F("error", r.err.Error()),
			)
			e.errorMetric("local", r.err)
		case <-threshold.C:
			e.printer.Log(
				logging.F("event", "smart_ipfs_local_threshold_exceeded"),
				logging.F("subject", subject),
				logging.F("cid", cid),
			)
		case <-ctx.Done():
			e.cancelAll(tasks)
			return
		}
	} else {
		select {
		case <-threshold.C:
		case <-ctx.Done():
			return
		}
	}

	e.printer.Log(
		logging.F("event", "smart_ipfs_fallback_start"),
		logging.F("subject", subject),
		logging.F("cid", cid),
	)

	for _, gw := range e.cfg.PublicGatewayURLs {
		gwCtx, cancel := context.WithCancel(ctx)
		tasks = append(tasks, running{kind: "public", url: gw, cancel: cancel})
		go func(gw string, gwCtx context.Context) {
			res, err := e.fetcher.Fetch(gwCtx, gw, cid, e.cfg.PublicTimeout)
			results <- attempt{kind: "public", url: gw, res: res, err: err}
		}(gw, gwCtx)
	}

	remaining := len(tasks)
	for remaining > 0 {
		select {
		case r := <-results:
			remaining--
			if r.err == nil {
				strategy := "fallback_to_public"
				event := "smart_ipfs_public_success"
				if r.kind == "local" {
					strategy = "local_after_threshold"
					event = "smart_ipfs_local_late_success"
				}
				e.printer.Log(
					logging.F("event", event),
					logging.F("subject", subject),
					logging.F("cid", cid),
					logging.F("gateway", r.url),
				)
				e.cancelOthers(tasks, r.kind, r.url)
				e.succeed(subject, mint, cid, strategy, r.res)
				return
			}

			event := "smart_ipfs_public_failed"
			if r.kind == "local" {
				event = "smart_ipfs_local_failed"
			}
			e.printer.Log(
				logging.F("event", event),
				logging.F("subject", subject),
				logging.F("cid", cid),
				logging.F("gateway", r.url),
				logging.F("error", r.err.Error()),
			)
			e.errorMetric(r.kind, r.err)
		case <-ctx.Done():
			e.cancelAll(tasks)
			return
		}
	}

	e.printer.Log(
		logging.F("event", "smart_ipfs_fetch_failed"),
		logging.F("subject", subject),
		logging.F("cid", cid),
	)
	if e.metrics != nil {
		e.metrics.FetchFailed()
	}
}

func (e *Engine) succeed(subject, mint, cid, strategy string, res Result) {
	speedKbps := 0.0
	if ms := res.Elapsed.Milliseconds(); ms > 0 {
		speedKbps = float64(res.BytesRead) * 1000 / float64(ms) / 1024
	}
	e.printer.Log(
		logging.F("event", "smart_ipfs_fetch_success"),
		logging.F("subject", subject),
		logging.F("mint", mint),
		logging.F("cid", cid),
		logging.F("strategy", strategy),
		logging.F("bytes", res.BytesRead),
		logging.F("elapsed_ms", res.Elapsed.Milliseconds()),
		logging.F("speed_kbps", speedKbps),
	)
	if e.metrics != nil {
		e.metrics.FetchSucceeded(strategy)
		kind := "public"
		if strategy == "local_only" || strategy == "local_after_threshold" {
			kind = "local"
		}
		e.metrics.GatewayLatency(kind, res.Elapsed)
	}
}

func (e *Engine) errorMetric(kind string, err error) {
	if e.metrics == nil {
		return
	}
	errKind := "stream_error"
	if fe, ok := err.(*FetchError); ok {
		errKind = string(fe.Kind)
	}
	e.metrics.GatewayError(kind, errKind)
}

func (e *Engine) cancelOthers(tasks []running, winnerKind, winnerURL string) {
	for _, t := range tasks {
		if t.kind == winnerKind && t.url == winnerURL {
			continue
		}
		t.cancel()
	}
}

func (e *Engine) cancelAll(tasks []running) {
	for _, t := range tasks {
		t.cancel()
	}
}
