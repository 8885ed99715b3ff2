package server

import (
	"errors"
	"fmt"
	"net/http"
	"node_starter/internal/config"
	"node_starter/internal/dataType"
	"node_starter/internal/utils"
	"strconv"
	"time"
)

// Node is a stand-in for a real node's control endpoint. It accepts one start time.
type Node struct {
	ID     int
	cfg    *config.MainConfig
	logger *utils.Logx
	timer  *StartTimer
	srv    *http.Server
	done   chan struct{}
}

func NewNode(id int, cfg *config.MainConfig, logger *utils.Logx) *Node {
	n := &Node{
		ID:     id,
		cfg:    cfg,
		logger: logger,
		timer:  NewStartTimer(),
		done:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.StartPath, n.HandleStart)
	mux.HandleFunc("/health_check", n.handleHealthCheck)

	n.srv = &http.Server{
		Addr:              ":" + strconv.Itoa(utils.NodePort(cfg.BasePort, id)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return n
}

func (n *Node) Timer() *StartTimer {
	return n.timer
}

// StartServer listens on the node's port until Shutdown is called.
func (n *Node) StartServer() error {
	go n.waitForStart()

	n.logger.Infof("Node %d listening on %s ...", n.ID, n.srv.Addr)
	err := n.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (n *Node) Shutdown() error {
	n.timer.Stop()
	select {
	case <-n.done:
	default:
		close(n.done)
	}
	return n.srv.Close()
}

func (n *Node) waitForStart() {
	select {
	case <-n.timer.Reached():
	case <-n.done:
		return
	}
	startTime, _ := n.timer.Get()
	n.logger.Infof("Node %d: start time reached (%d)", n.ID, startTime)
}

// HandleStart serves GET <start_path>?time=<ms since epoch>.
func (n *Node) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("time")
	if raw == "" {
		n.logger.Errorf("[WARNING] Node %d: start request from %s without time", n.ID, r.RemoteAddr)
		http.Error(w, "Missing start time", http.StatusBadRequest)
		return
	}
	startTime, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid start time: "+raw, http.StatusBadRequest)
		return
	}

	if err := n.timer.Set(startTime); err != nil {
		if errors.Is(err, ErrStartTimeSet) {
			n.logger.Errorf("[WARNING] Node %d: attempted to set start time, but start time has already been set", n.ID)
			http.Error(w, "Start time has already been set.", http.StatusBadRequest)
			return
		}
		n.logger.Errorf("[WARNING] Node %d: rejected start time %d: %v", n.ID, startTime, err)
		http.Error(w, fmt.Sprintf("Invalid start time: %d", startTime), http.StatusBadRequest)
		return
	}

	n.logger.Infof("Node %d: start time set to %d", n.ID, startTime)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Start time set.")); err != nil {
		n.logger.Errorf("[ERROR] Failed to write response: %v", err)
	}
}

func (n *Node) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	startTime, started := n.timer.Get()
	body := fmt.Sprintf("ok\nversion=%s\nnode=%d\nstarted=%t\nstart_time=%d\n",
		dataType.NodeStarterVersion, n.ID, started, startTime)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		n.logger.Errorf("[ERROR] Failed to write response: %v", err)
	}
}
