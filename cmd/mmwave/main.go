// Command mmwave reads the TI mmWave data UART, parses detected-object
// frames and publishes point clouds to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annzb/mmwave/internal/db"
	"github.com/annzb/mmwave/internal/mmwave"
	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/params"
	"github.com/annzb/mmwave/internal/pointcloud"
	"github.com/annzb/mmwave/internal/pubsub"
	"github.com/annzb/mmwave/internal/serialport"
	"github.com/annzb/mmwave/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Replay a fixture file instead of opening serial hardware")
	fixture     = flag.String("fixture", "fixtures.bin", "Raw frame bytes to replay in dev mode")
	portPath    = flag.String("port", "/dev/ttyACM1", "Data serial port (ignored in dev mode)")
	baudRate    = flag.Int("baud", 921600, "Data serial port baud rate")
	paramsFile  = flag.String("params", "", "Chirp parameter file (any viper format; default: search for mmwave.*)")
	dbFile      = flag.String("db", "", "Record emitted clouds to this sqlite database")
	mqttBroker  = flag.String("mqtt-broker", "", "Publish clouds to this MQTT broker (e.g. tcp://localhost:1883)")
	mqttTopic   = flag.String("mqtt-topic", "mmwave/points", "MQTT topic for published clouds")
	metrics     = flag.String("metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// readTimeout bounds each serial read so a stalled link surfaces as
// zero-byte reads instead of a blocked reader.
const readTimeout = 100 * time.Millisecond

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mmwave %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	log.Printf("mmwave %s starting", version.Version)

	// A fatal port failure still runs the deferred cleanup below, then the
	// process exits with a non-zero status.
	var fatalErr error
	defer func() {
		if fatalErr != nil {
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := loadRegistry()
	if err != nil {
		log.Fatalf("failed to load chirp parameters: %v", err)
	}

	cfg, err := mmwave.DeriveConfig(ctx, registry)
	if err != nil {
		log.Fatalf("failed to derive radar config: %v", err)
	}

	var opener serialport.Opener
	if *devMode {
		data, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("failed to open fixture file: %v", err)
		}
		opener = func() (serialport.Porter, error) {
			return serialport.NewReplayPort(data, true), nil
		}
	} else {
		opts := serialport.PortOptions{BaudRate: *baudRate}
		opener = serialport.RealOpener(*portPath, opts, readTimeout)
	}

	mux := pubsub.NewCloudMux()
	defer mux.Close()

	var wg sync.WaitGroup
	attachSink := func(name string, sink func(*pointcloud.Cloud)) {
		id, ch := mux.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer mux.Unsubscribe(id)
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-ch:
					if !ok {
						return
					}
					sink(c)
				}
			}
		}()
		monitoring.Logf("attached %s sink", name)
	}

	// Diagnostic sink: per-cloud summary statistics.
	attachSink("log", func(c *pointcloud.Cloud) {
		s := pointcloud.Summarize(c)
		monitoring.Logf("frame %d: %d points, mean intensity %.1f dB, max range %.2f m",
			c.FrameNumber, s.NumPoints, s.MeanIntensity, s.MaxRange)
	})

	if *dbFile != "" {
		archive, err := db.NewArchive(*dbFile)
		if err != nil {
			log.Fatalf("failed to open archive database: %v", err)
		}
		defer archive.Close()
		attachSink("archive", archive.Publish)
	}

	if *mqttBroker != "" {
		publisher, err := pubsub.NewMQTTPublisher(pubsub.MQTTConfig{
			Broker: *mqttBroker,
			Topic:  *mqttTopic,
		})
		if err != nil {
			log.Fatalf("failed to connect MQTT publisher: %v", err)
		}
		defer publisher.Close()
		attachSink("mqtt", publisher.Publish)
	}

	if *metrics != "" {
		server := &http.Server{Addr: *metrics, Handler: promhttp.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer server.Close()
	}

	handler := mmwave.NewHandler(cfg, mux, opener)
	handler.SetFatalHandler(func(err error) {
		log.Printf("fatal: %v; shutting down", err)
		fatalErr = err
		stop()
	})
	handler.Start()

	<-ctx.Done()
	log.Println("shutting down")
	handler.Stop()
	handler.Wait()
	mux.Close()
	wg.Wait()
}

func loadRegistry() (params.Registry, error) {
	if *paramsFile != "" {
		return params.LoadFile(*paramsFile)
	}
	return params.Load()
}
