package broadcast

import (
	"fmt"
	"io"
	"net/http"
	"node_starter/internal/config"
	"node_starter/internal/dataType"
	"node_starter/internal/utils"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxErrorBody bounds how much of a failed response body is echoed in the error line.
const maxErrorBody = 256

// Coordinator broadcasts one shared start time to every node and waits for all of them.
type Coordinator struct {
	cfg    *config.MainConfig
	logger *utils.Logx

	// Client and Now may be replaced before Run.
	Client *http.Client
	Now    func() time.Time
}

func NewCoordinator(cfg *config.MainConfig, logger *utils.Logx) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		logger: logger,
		Client: &http.Client{Timeout: cfg.RequestTimeout},
		Now:    time.Now,
	}
}

// StartTime returns now plus the configured delay, in milliseconds since epoch.
func (c *Coordinator) StartTime() int64 {
	return c.Now().Add(c.cfg.StartDelay).UnixMilli()
}

// Run sends the start time to nodes [0, n) concurrently and blocks until every
// request has succeeded, failed or timed out. Per-node failures never abort the run.
func (c *Coordinator) Run(n int) *dataType.Summary {
	summary := &dataType.Summary{
		RunID:     uuid.New().String(),
		StartTime: c.StartTime(),
		Results:   make([]dataType.NodeResult, n),
	}
	c.logger.Debugf("run %s: start time %d for %d nodes", summary.RunID, summary.StartTime, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(node int, startTime int64) {
			defer wg.Done()
			summary.Results[node] = c.startNode(node, startTime)
		}(i, summary.StartTime)
	}
	wg.Wait()

	c.logger.Debugf("run %s: %d succeeded, %d failed", summary.RunID, summary.Succeeded(), summary.Failed())
	c.logger.Infof("Nodes started")
	return summary
}

func (c *Coordinator) startNode(node int, startTime int64) dataType.NodeResult {
	port := utils.NodePort(c.cfg.BasePort, node)
	url := utils.StartURL(c.cfg.Host, port, c.cfg.StartPath, startTime)
	result := dataType.NodeResult{Node: node, URL: url}

	began := time.Now()
	result.Err = c.sendStart(url)
	c.logger.Debugf("node %d: GET %s took %s", node, url, time.Since(began))

	if result.Err != nil {
		c.logger.Errorf("Error starting node %d: %v", node, result.Err)
	} else {
		c.logger.Infof("Node %d started", node)
	}
	return result
}

func (c *Coordinator) sendStart(url string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debugf("failed to close response body from %s: %v", url, err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if body := strings.TrimSpace(string(raw)); body != "" {
			return fmt.Errorf("status %s: %s", resp.Status, body)
		}
		return fmt.Errorf("status %s", resp.Status)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
