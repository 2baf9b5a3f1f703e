package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/peermeet/peermeet/internal/config"
	"github.com/peermeet/peermeet/internal/logging"
	"github.com/peermeet/peermeet/internal/server"
	"github.com/peermeet/peermeet/internal/signaling"
)

func main() {
	logging.Init()
	cfg := config.LoadServer()

	registry := signaling.NewRegistry(slog.Default())
	relay := signaling.NewRelay(registry, slog.Default())
	handler := server.New(relay, slog.Default())

	addr := ":" + cfg.Port
	slog.Info("starting signaling server", "addr", addr)

	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
