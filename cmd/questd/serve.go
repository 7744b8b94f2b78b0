package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lawnchairsociety/questgraph/internal/feed"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/quest"
)

// progressView is one row of the /progress endpoint
type progressView struct {
	ID    string `json:"id,omitempty"`
	GUID  string `json:"guid"`
	State string `json:"state"`
}

// progressHandler lists the snapshot, or one entry when ?guid= is given.
func (a *app) progressHandler(w http.ResponseWriter, r *http.Request) {
	var views []progressView
	if key := r.URL.Query().Get("guid"); key != "" {
		state, ok := a.tracker.Snapshot().StateByKey(key)
		if !ok {
			http.Error(w, "no progress entry for "+key, http.StatusNotFound)
			return
		}
		views = []progressView{a.progressView(key, state)}
	} else {
		entries := a.tracker.Snapshot().Entries()
		views = make([]progressView, 0, len(entries))
		for _, e := range entries {
			views = append(views, a.progressView(e.Quest, e.State))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		logger.Warning("Failed to write progress response", "remote_addr", r.RemoteAddr, "error", err)
	}
}

func (a *app) progressView(key string, state quest.State) progressView {
	v := progressView{GUID: key, State: state.String()}
	if q := a.questByKey(key); q != nil {
		v.ID = q.ID
	}
	return v
}

// serve publishes quest events on /ws and reads console commands from in
// until ctx is done. Quest state is only changed from this goroutine.
func (a *app) serve(ctx context.Context, slot string, in io.Reader, out io.Writer) error {
	hub := feed.NewHub(a.cfg.Feed)
	hub.Watch(a.graph)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/progress", a.progressHandler)

	srv := &http.Server{
		Addr:              a.cfg.Feed.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Event feed listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err, ok := <-serveErr:
			if ok {
				runErr = fmt.Errorf("feed server: %w", err)
			}
			break loop
		case line := <-lines:
			args := strings.Fields(line)
			if len(args) == 0 {
				continue
			}
			if args[0] == "quit" || args[0] == "exit" {
				break loop
			}
			if err := a.exec(args, slot, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warning("Feed server shutdown", "error", err)
	}
	return runErr
}

// watch prints every feed message from url as a JSON line until ctx is
// done or the feed closes.
func watch(ctx context.Context, url string, out io.Writer) error {
	w, err := feed.Dial(url, "")
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
	}
}

func feedURL(address string) string {
	return "ws://" + address + "/ws"
}
