// Package health periodically probes the survey URLs of web-based studies
// so operators notice dead links before participants do.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prepams/prepams/internal/study"
	"go.uber.org/zap"
)

// Config holds prober configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// StudyLister returns the web-based studies to probe.
// *study.PostgresStore and *study.MemoryStore satisfy this interface.
type StudyLister interface {
	ListWebBased(ctx context.Context) ([]*study.Study, error)
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Checker runs periodic study URL reachability probes.
type Checker struct {
	lister     StudyLister
	httpClient *http.Client
	failCounts map[string]int
	mu         sync.Mutex
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a new Checker.
func New(lister StudyLister, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 15 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		lister:     lister,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until done is closed.
func (c *Checker) Start(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-done:
			return
		}
	}
}

// CheckAll probes all web-based study URLs with bounded concurrency.
func (c *Checker) CheckAll(ctx context.Context) {
	studies, err := c.lister.ListWebBased(ctx)
	if err != nil {
		c.logger.Error("health: list web-based studies", zap.Error(err))
		return
	}

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, st := range studies {
		if st.StudyURL == nil {
			continue
		}
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			success := c.probe(ctx, url)

			if c.onMetrics != nil {
				c.onMetrics(success)
			}

			c.mu.Lock()
			prevCount := c.failCounts[id]
			if success {
				c.failCounts[id] = 0
			} else {
				c.failCounts[id]++
			}
			count := c.failCounts[id]
			c.mu.Unlock()

			if success && prevCount >= c.cfg.FailThreshold {
				c.logger.Info("health: study URL recovered", zap.String("study", id))
			} else if count == c.cfg.FailThreshold {
				c.logger.Warn("health: study URL unreachable",
					zap.String("study", id),
					zap.String("url", url),
					zap.Int("fail_count", count),
				)
			}
		}(st.ID, *st.StudyURL)
	}

	wg.Wait()
}

// probe attempts HEAD then GET, returning true for any 2xx response.
func (c *Checker) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
