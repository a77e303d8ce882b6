// lightpath-server serves the tracer over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudmetrics "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"lightpath/healthz"
	"lightpath/httpmetrics"
	"lightpath/pathstore"
	"lightpath/server"
	"lightpath/tracer"
)

var (
	listen               = flag.String("listen", "0.0.0.0:8080", "Server address:port for the trace API.")
	debugListen          = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	storeDir             = flag.String("store", "", "Directory of the run database.  Empty means runs are not stored.")
	requestsPerSecond    = flag.Float64("requests-per-second", 5, "Trace requests admitted per second.  Zero means unlimited.")
	maxRays              = flag.Int("max-rays", 100000, "Largest number of rays one request may trace.")
	workers              = flag.Int("workers", 0, "Rays traced at once per request.  Zero means one per CPU.")
	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 0.0001, "What ratio of traces should be exported?")
	enableMetrics        = flag.Bool("enable-metrics", false, "Export OpenCensus views to Cloud Monitoring?")
)

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	glog.Infof("listen: %q", *listen)
	glog.Infof("debug-listen: %q", *debugListen)
	glog.Infof("store: %q", *storeDir)
	glog.Infof("requests-per-second: %v", *requestsPerSecond)
	glog.Infof("max-rays: %d", *maxRays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *monitoring {
		metricsOpts := []cloudmetrics.Option{}
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			metricsOpts = append(metricsOpts, cloudmetrics.WithProjectID(*monitoringProject))
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			glog.Fatalf("Failed to install Cloud Trace OpenTelemetry trace pipeline: %v", err)
		}
		defer traceShutdown()

		pusher, err := cloudmetrics.InstallNewPipeline(metricsOpts)
		if err != nil {
			glog.Fatalf("Failed to install Cloud Metrics OpenTelemetry meter pipeline: %v", err)
		}
		defer pusher.Stop(ctx)
	}

	if *enableMetrics {
		sdOpts := stackdriver.Options{
			MetricPrefix:      "lightpath",
			ReportingInterval: 60 * time.Second,
		}
		if *monitoringProject != "" {
			sdOpts.ProjectID = *monitoringProject
		}
		exporter, err := stackdriver.NewExporter(sdOpts)
		if err != nil {
			glog.Fatalf("Error initializing metrics exporter: %v", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			glog.Fatalf("Error starting metrics exporter: %v", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if err := tracer.RegisterMetrics(); err != nil {
		glog.Fatalf("Failed to register tracer metrics: %v", err)
	}

	opts := []server.Opt{
		server.WithRequestsPerSecond(*requestsPerSecond),
		server.WithMaxRays(*maxRays),
		server.WithWorkers(*workers),
	}

	var store *pathstore.Store
	if *storeDir != "" {
		var err error
		store, err = pathstore.Open(*storeDir, false)
		if err != nil {
			glog.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()
		opts = append(opts, server.WithStore(store))
	}

	apiServeMux := http.NewServeMux()
	server.New(opts...).Register(apiServeMux)

	api := httpmetrics.New("lightpath/http", apiServeMux)
	if err := api.RegisterMetrics(); err != nil {
		glog.Fatalf("Failed to register HTTP metrics: %v", err)
	}

	apiServer := &http.Server{
		Addr:    *listen,
		Handler: api,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	storeReady := func() error {
		if store == nil {
			return nil
		}
		_, err := store.ListRuns()
		return err
	}

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", healthz.New(storeReady))
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("Error while serving http: %v", err)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Infof("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("While shutting down API server: %v", err)
	}
	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("While shutting down debug server: %v", err)
	}

	glog.Flush()
}
