package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/lazypower/lethe/internal/config"
)

// ErrCircuitOpen is returned while the breaker rejects calls to the remote
// signal service.
var ErrCircuitOpen = errors.New("signal: circuit breaker is open")

// HTTP asks a remote service for intensities.
//
// Request:  POST {url} {"ids": ["a", "b"]}
// Response: 200 {"intensities": {"a": 0.8}}
//
// Calls go through a circuit breaker so a dead service does not stall every
// analysis pass for the full client timeout.
type HTTP struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTP creates an HTTP provider from cfg.
func NewHTTP(cfg config.SignalConfig) *HTTP {
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	settings := gobreaker.Settings{
		Name:        "signal-http",
		MaxRequests: cfg.Breaker.HalfOpenMax,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("signal: breaker %s %s -> %s", name, from, to)
		},
	}
	return &HTTP{
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (h *HTTP) Name() string { return "http" }

// State reports the breaker state: closed, open or half-open.
func (h *HTTP) State() string {
	return h.breaker.State().String()
}

func (h *HTTP) Intensities(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	res, err := h.breaker.Execute(func() (interface{}, error) {
		return h.fetch(ctx, ids)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return res.(map[string]float64), nil
}

func (h *HTTP) fetch(ctx context.Context, ids []string) (map[string]float64, error) {
	body, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signal api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signal api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Intensities map[string]float64 `json:"intensities"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Drop values the calculator would have to clamp or could not use.
	out := make(map[string]float64, len(result.Intensities))
	for id, v := range result.Intensities {
		if math.IsNaN(v) || v < 0 || v > 1 {
			continue
		}
		out[id] = v
	}
	return out, nil
}
