package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"custody-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 2 * time.Second

type probeResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every dependency is probed concurrently
// under its own deadline. A paused vault is reported but stays healthy:
// withdrawals keep working while deposits are stopped.
func HealthCheck(safety ports.SafetyController, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		results := make([]probeResult, len(checkers))
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = probe(ctx, checker)
			}()
		}
		wg.Wait()

		deps := make(map[string]probeResult, len(checkers))
		healthy := true
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			healthy = healthy && results[i].Error == ""
		}

		body := gin.H{"dependencies": deps}
		if safety != nil {
			if state, err := safety.State(ctx); err != nil {
				healthy = false
				body["vault"] = gin.H{"error": err.Error()}
			} else {
				body["vault"] = gin.H{"mode": state.Mode(), "deposit_cap": state.DepositCap}
			}
		}

		code := http.StatusOK
		body["status"] = "healthy"
		if !healthy {
			code = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(code, body)
	}
}

func probe(ctx context.Context, checker ports.HealthChecker) probeResult {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	res := probeResult{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "unhealthy"
		res.Error = err.Error()
	}
	return res
}
