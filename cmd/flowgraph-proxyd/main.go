// Flowgraph Proxyd — окружение исполнения блоков за RabbitMQ.
//
// Proxyd:
//   - Держит локальное окружение со встроенным реестром блоков
//   - Обслуживает очередь flowgraph.env.<PROCESS_NAME>
//   - Отдаёт /healthz и /metrics
//
// Зона документа с hostUri amqp://... и processName, равным PROCESS_NAME,
// вычисляется в этом процессе.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Flowgraph/internal/local"
	"github.com/shaiso/Flowgraph/internal/mq"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting flowgraph-proxyd")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	processName := os.Getenv("PROCESS_NAME")
	if processName == "" {
		processName = mq.DefaultProcessName
	}

	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	conn, err := mq.NewConnection(ctx, mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	env := local.NewEnvironment("proxyd:"+processName, local.DefaultRegistry())
	server := mq.NewServer(env, logger)

	if err := server.ServeAMQP(ctx, conn, processName); err != nil {
		logger.Error("failed to serve environment", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("PROXYD_PORT"); v != "" {
		port = ":" + v
	}
	srv := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("listening", "addr", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	server.Close(shutdownCtx)
	env.Close()

	logger.Info("flowgraph-proxyd stopped", "objects_left", server.Objects())
}
