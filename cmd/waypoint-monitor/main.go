// Command waypoint-monitor watches waypoint sensor inputs and reports each
// debounced transition to a remote tracking service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubertat/servicemaker"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/config"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/indicator"
	"github.com/sweeney/waypoint-monitor/internal/logging"
	"github.com/sweeney/waypoint-monitor/internal/logic"
	"github.com/sweeney/waypoint-monitor/internal/monitor"
	"github.com/sweeney/waypoint-monitor/internal/mqtt"
	"github.com/sweeney/waypoint-monitor/internal/notify"
	"github.com/sweeney/waypoint-monitor/internal/shutdown"
	"github.com/sweeney/waypoint-monitor/internal/status"
	"github.com/sweeney/waypoint-monitor/internal/web"
)

var service = servicemaker.ServiceMaker{
	User:               "waypoint",
	UserGroups:         []string{"gpio"},
	ServicePath:        "/etc/systemd/system/waypoint-monitor.service",
	ServiceDescription: "Waypoint monitor: reports waypoint sensor transitions to the tracking service",
	ExecDir:            "/srv/waypoint-monitor",
	ExecName:           "waypoint-monitor",
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path of the configuration file (YAML or JSON)")
	install := flag.Bool("install", false, "install as a systemd service and exit")
	printState := flag.Bool("print-state", false, "print current input levels and exit")
	flag.Parse()

	if *install {
		if err := service.InstallService(); err != nil {
			logrus.Fatalf("install service: %v", err)
		}
		logrus.Info("service installed")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.Logging, os.Stderr)

	if err := run(cfg, log, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, log *logrus.Logger, printState bool) error {
	chip, err := gpio.NewRealChip(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	if printState {
		defer chip.Close()
		return printLevels(os.Stdout, chip, cfg)
	}

	client, err := notify.NewClient(cfg.RemoteBaseURL, cfg.Proxy)
	if err != nil {
		chip.Close()
		return fmt.Errorf("init tracking client: %w", err)
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var conn mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		rp, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, log)
		if err != nil {
			log.WithError(err).Warn("MQTT disabled")
		} else {
			publisher, conn = rp, rp
		}
	}
	defer publisher.Close()

	halter := &shutdown.CommandHalter{Command: cfg.ShutdownCommand, Log: log}
	d, err := newDaemon(cfg, chip, client, publisher, conn, halter, clock.Real(), log)
	if err != nil {
		chip.Close()
		return err
	}
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}

	if err := d.start(); err != nil {
		d.close()
		return err
	}

	if interval := cfg.HeartbeatInterval(); interval > 0 {
		c := cron.New()
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), d.heartbeat); err != nil {
			d.close()
			return fmt.Errorf("schedule heartbeat: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, d.tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"inputs":   len(cfg.Inputs),
		"debounce": cfg.Debounce,
		"timeout":  cfg.DebounceTimeout(),
		"remote":   cfg.RemoteBaseURL,
	}).Info("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loopErr := runLoop(d.faults, sigCh, d.lifecycle)
	if err := d.close(); err != nil {
		log.WithError(err).Warn("cleanup")
	}
	return loopErr
}

// daemon owns the wired components for one run of the monitor.
type daemon struct {
	cfg        *config.Config
	log        logrus.FieldLogger
	chip       gpio.Chip
	ready      gpio.Output
	activity   gpio.Output
	gate       *logic.Gate
	flasher    *indicator.Flasher
	dispatcher *notify.Dispatcher
	monitor    *monitor.Monitor
	watcher    *shutdown.Watcher
	tracker    *status.Tracker
	lifecycle  *lifecycle

	faults chan error
	cancel context.CancelFunc
	done   chan struct{}
}

func newDaemon(cfg *config.Config, chip gpio.Chip, svc notify.Service, publisher mqtt.Publisher, conn mqtt.ConnectionStatus, halter shutdown.Halter, clk clock.Clock, log logrus.FieldLogger) (*daemon, error) {
	ready, err := chip.Output(cfg.LEDs.Ready)
	if err != nil {
		return nil, fmt.Errorf("request ready LED: %w", err)
	}
	activity, err := chip.Output(cfg.LEDs.Activity)
	if err != nil {
		return nil, fmt.Errorf("request activity LED: %w", err)
	}

	d := &daemon{
		cfg:      cfg,
		log:      log,
		chip:     chip,
		ready:    ready,
		activity: activity,
		faults:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	d.tracker = status.NewTracker(clk.Now(), status.Config{
		Inputs:          len(cfg.Inputs),
		DebounceEnabled: cfg.Debounce,
		DebounceMs:      cfg.DebounceTimeout().Milliseconds(),
		RemoteBaseURL:   cfg.RemoteBaseURL,
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
	})
	d.lifecycle = &lifecycle{
		publisher: publisher,
		conn:      conn,
		tracker:   d.tracker,
		log:       log,
		now:       clk.Now,
	}

	d.gate = logic.NewGate(cfg.Debounce, cfg.DebounceTimeout(), clk)
	d.flasher = indicator.NewFlasher(activity, cfg.FlashDuration(), clk, d.fault)
	d.dispatcher = notify.NewDispatcher(svc, cfg.RequestTimeout(), log)
	d.dispatcher.OnSettle(d.tracker.RecordOutcome)

	d.monitor = monitor.New(d.gate, d.flasher, d.dispatcher, clk, log)
	d.monitor.SetTracker(d.tracker)

	d.watcher = shutdown.NewWatcher(cfg.ShutdownHoldTime(), shutdown.HalterFunc(func() {
		d.lifecycle.publish(mqtt.EventPowerOff, "", true)
		halter.Halt()
	}), clk, log)
	return d, nil
}

// fault records the first hardware fault; later ones are dropped.
func (d *daemon) fault(err error) {
	select {
	case d.faults <- err:
	default:
	}
}

// start lights the ready LED, begins dispatching and watches every line.
func (d *daemon) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go func() {
		defer close(d.done)
		d.dispatcher.Run(ctx)
	}()

	if err := d.ready.Write(gpio.High); err != nil {
		return fmt.Errorf("set ready LED: %w", err)
	}
	if err := d.monitor.Start(d.chip, d.cfg.InputConfigs(), d.fault); err != nil {
		return fmt.Errorf("watch inputs: %w", err)
	}
	if err := d.watcher.Start(d.chip, d.cfg.ShutdownButton, d.fault); err != nil {
		return fmt.Errorf("watch shutdown button: %w", err)
	}

	d.lifecycle.publish(mqtt.EventStartup, "", true)
	return nil
}

func (d *daemon) heartbeat() {
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	d.lifecycle.publish(mqtt.EventHeartbeat, "", false)
}

// close detaches the monitor, stops the dispatcher and timers, turns both
// LEDs off and releases every line. Pending notifications are dropped.
func (d *daemon) close() error {
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
	d.gate.Stop()
	d.flasher.Stop()

	var errs []error
	if err := d.ready.Write(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("ready LED off: %w", err))
	}
	if err := d.activity.Write(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("activity LED off: %w", err))
	}
	if err := d.chip.Close(); err != nil {
		errs = append(errs, err)
	}
	if pending := d.dispatcher.Pending(); pending > 0 {
		d.log.WithField("pending", pending).Warn("dropping queued notifications")
	}
	return errors.Join(errs...)
}

// lifecycle publishes system events carrying a status snapshot.
type lifecycle struct {
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	log       logrus.FieldLogger
	now       func() time.Time
}

func (l *lifecycle) publish(event, reason string, retained bool) {
	e := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if l.tracker != nil {
		if l.conn != nil {
			l.tracker.SetMQTTConnected(l.conn.IsConnected())
		}
		e.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	entry := l.log.WithField("event", event)
	if err := l.publisher.PublishSystem(e); err != nil {
		entry.WithError(err).Warn("failed to publish system event")
		return
	}
	entry.Debug("published system event")
}

// runLoop blocks until a signal or a hardware fault. A signal publishes
// SHUTDOWN and returns nil; a fault is returned.
func runLoop(faults <-chan error, sig <-chan os.Signal, lc *lifecycle) error {
	select {
	case s := <-sig:
		name := signalName(s)
		lc.log.WithField("signal", name).Info("shutting down")
		lc.publish(mqtt.EventShutdown, name, true)
		return nil
	case err := <-faults:
		return fmt.Errorf("hardware fault: %w", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printLevels(w io.Writer, chip gpio.Chip, cfg *config.Config) error {
	for _, in := range cfg.InputConfigs() {
		v, err := chip.Read(in.Line)
		if err != nil {
			return fmt.Errorf("read gpio %d: %w", in.Line, err)
		}
		fmt.Fprintf(w, "GPIO %d (%s): %s\n", in.Line, in.Policy, v)
	}
	v, err := chip.Read(cfg.ShutdownButton)
	if err != nil {
		return fmt.Errorf("read shutdown button: %w", err)
	}
	fmt.Fprintf(w, "GPIO %d (shutdown): %s\n", cfg.ShutdownButton, v)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
