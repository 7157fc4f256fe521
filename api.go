package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof" // register handlers
	"regexp"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (robo *Robot) api(ctx context.Context, listen string, mux *http.ServeMux, metrics []prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorMemStatsMetricsDisabled(),
		collectors.WithGoCollectorRuntimeMetrics(
			collectors.GoRuntimeMetricsRule{
				Matcher: regexp.MustCompile(`^(/gc/heap/allocs:bytes|/gc/heap/goal:bytes|/memory/classes/total:bytes|/sched/goroutines:goroutines|/sched/latencies:seconds)$`),
			},
		),
	))
	reg.MustRegister(metrics...)
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, opts))
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	robo.routes(mux)
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("couldn't start API server: %w", err)
	}
	srv := http.Server{
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.InfoContext(ctx, "HTTP API server", slog.Any("addr", l.Addr()))
		err := srv.Serve(l)
		if err == http.ErrServerClosed {
			return
		}
		slog.ErrorContext(ctx, "HTTP API server closed", slog.Any("err", err))
	}()
	<-ctx.Done()
	// The context is now done, so it is obviously the wrong choice for
	// managing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// routes adds the JSON API to mux.
func (robo *Robot) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/watchlist", robo.apiWatched)
	mux.HandleFunc("POST /api/watchlist", robo.apiWatch)
	mux.HandleFunc("DELETE /api/watchlist", robo.apiUnwatch)
	mux.HandleFunc("GET /api/relay", robo.apiPending)
}

func jsonerror(w http.ResponseWriter, status int, msg string) {
	v := struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{
		Error:  msg,
		Status: status,
	}
	b, err := json.Marshal(&v)
	if err != nil {
		panic(err)
	}
	w.WriteHeader(status)
	w.Write(b)
}

func apilog(ctx context.Context, api string, r *http.Request) *slog.Logger {
	log := slog.With(slog.String("api", api), slog.Any("trace", uuid.New()))
	log.InfoContext(ctx, "handle", slog.String("route", r.Pattern), slog.String("remote", r.RemoteAddr))
	return log
}

func writeJSON(ctx context.Context, log *slog.Logger, w http.ResponseWriter, v any) {
	b, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		panic(err)
	}
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "write response failed", slog.Any("err", err))
	}
}

func (robo *Robot) apiWatched(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := apilog(ctx, "watched", r)
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	var all []string
	if err := robo.do(ctx, func(ctx context.Context) { all = robo.watch.All() }); err != nil {
		jsonerror(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	u := struct {
		Data   []string `json:"data"`
		Status int      `json:"status"`
	}{
		Data:   all,
		Status: http.StatusOK,
	}
	if u.Data == nil {
		u.Data = []string{}
	}
	writeJSON(ctx, log, w, &u)
}

func (robo *Robot) apiWatch(w http.ResponseWriter, r *http.Request) {
	robo.apiEdit(w, r, "watch", func(ctx context.Context, nick string) error {
		return robo.watch.Add(ctx, nick)
	})
}

func (robo *Robot) apiUnwatch(w http.ResponseWriter, r *http.Request) {
	robo.apiEdit(w, r, "unwatch", func(ctx context.Context, nick string) error {
		return robo.watch.Remove(ctx, nick)
	})
}

// apiEdit applies edit to each nick in a request body of JSON strings.
func (robo *Robot) apiEdit(w http.ResponseWriter, r *http.Request, api string, edit func(ctx context.Context, nick string) error) {
	ctx := r.Context()
	log := apilog(ctx, api, r)
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	d := jsontext.NewDecoder(r.Body)
	var nicks []string
	for {
		tok, err := d.ReadToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.ErrorContext(ctx, "read token", slog.Any("err", err))
			jsonerror(w, http.StatusBadRequest, "token read failed")
			return
		}
		if tok.Kind() != '"' {
			log.WarnContext(ctx, "invalid token", slog.Any("kind", tok.Kind()))
			jsonerror(w, http.StatusBadRequest, "input not a JSON string")
			return
		}
		nicks = append(nicks, tok.String())
	}
	var all error
	err := robo.do(ctx, func(ctx context.Context) {
		for _, nick := range nicks {
			if err := edit(ctx, nick); err != nil {
				log.ErrorContext(ctx, "edit failed", slog.String("nick", nick), slog.Any("err", err))
				all = errors.Join(all, err)
				// continue on
			}
		}
	})
	if err != nil {
		jsonerror(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if all != nil {
		jsonerror(w, http.StatusInternalServerError, all.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type apiPeer struct {
	Peer    string `json:"peer"`
	Pending int    `json:"pending"`
}

func (robo *Robot) apiPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := apilog(ctx, "pending", r)
	defer log.InfoContext(ctx, "done")
	w.Header().Set("Content-Type", "application/json")
	var peers []apiPeer
	err := robo.do(ctx, func(ctx context.Context) {
		for _, s := range robo.sources.Relays() {
			peers = append(peers, apiPeer{Peer: s.Name, Pending: robo.engine.Pending(s.Name)})
		}
	})
	if err != nil {
		jsonerror(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	u := struct {
		Data   []apiPeer `json:"data"`
		Status int       `json:"status"`
	}{
		Data:   peers,
		Status: http.StatusOK,
	}
	if u.Data == nil {
		u.Data = []apiPeer{}
	}
	writeJSON(ctx, log, w, &u)
}
