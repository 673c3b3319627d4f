// Command emperor drives the linear actuators of a motorised workstation from
// buttons, MQTT and HTTP, with per-direction run time limits and an interlock.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/emperor/internal/config"
	"github.com/sweeney/emperor/internal/driver"
	"github.com/sweeney/emperor/internal/gpio"
	"github.com/sweeney/emperor/internal/logic"
	"github.com/sweeney/emperor/internal/mqtt"
	"github.com/sweeney/emperor/internal/status"
	"github.com/sweeney/emperor/internal/web"
)

var (
	// Version is set using -ldflags during compilation.
	Version = "dev"
	// Commit is set using -ldflags during compilation.
	Commit string
)

type options struct {
	Poll       time.Duration `long:"poll" default:"10ms" description:"Control loop period"`
	Broker     string        `long:"broker" default:"tcp://192.168.1.200:1883" description:"MQTT broker address"`
	Device     string        `long:"device" default:"emperor" description:"Homie device id"`
	HTTP       string        `long:"http" default:":80" description:"HTTP status address (empty to disable)"`
	Config     string        `long:"config" description:"Hardware YAML file (built-in layout when empty)"`
	Heartbeat  time.Duration `long:"heartbeat" default:"15m" description:"Heartbeat interval (0 to disable)"`
	Chip       string        `long:"chip" default:"gpiochip0" description:"GPIO character device"`
	EnvFile    string        `long:"env-file" default:"/run/pi-helper.env" description:"Network state written by pi-helper"`
	Debug      bool          `long:"debug" description:"Enable debug logging"`
	PrintState bool          `long:"print-state" description:"Print current input levels and exit"`
	DumpConfig bool          `long:"dump-config" description:"Print the hardware layout as YAML and exit"`
}

func main() {
	if err := emperorMain(os.Args[1:]); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// emperorMain is the true entry point. Defers in main are skipped by
// log.Fatal, so everything that needs cleanup lives here.
func emperorMain(args []string) error {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	opts, err := parseOptions(args)
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "parse arguments")
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	hw, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	if opts.DumpConfig {
		data, err := hw.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	return run(opts, hw)
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	if _, err := flags.NewParser(opts, flags.Default).ParseArgs(args); err != nil {
		return nil, err
	}
	if opts.Poll <= 0 {
		return nil, errors.Errorf("poll must be positive, got %v", opts.Poll)
	}
	if opts.Device == "" {
		return nil, errors.New("device must not be empty")
	}
	return opts, nil
}

func run(opts *options, hw *config.Hardware) error {
	reader, err := gpio.NewRealReader(opts.Chip, hw.InputPins())
	if err != nil {
		return errors.Wrap(err, "init gpio inputs")
	}
	defer reader.Close()

	firstRaw, err := reader.Read()
	if err != nil {
		return errors.Wrap(err, "read gpio")
	}

	if opts.PrintState {
		for i, in := range hw.Inputs {
			fmt.Printf("%s: %s\n", in.Name, pressedString(firstRaw[i] != in.Idle))
		}
		return nil
	}

	outputs, err := gpio.NewRealOutputs(opts.Chip)
	if err != nil {
		return errors.Wrap(err, "init gpio outputs")
	}
	// Releases every relay, even on a build error below.
	defer outputs.Close()

	reg, err := hw.Build(func(pin int, idle bool) (logic.Output, error) {
		return outputs.Open(pin, idle)
	}, firstRaw)
	if err != nil {
		return errors.Wrap(err, "build actuators")
	}

	start := time.Now()
	tracker := status.NewTracker(start, status.Config{
		PollMs:       opts.Poll.Milliseconds(),
		HeartbeatMs:  opts.Heartbeat.Milliseconds(),
		Broker:       opts.Broker,
		Device:       opts.Device,
		HTTPAddr:     opts.HTTP,
		HardwareFile: opts.Config,
	})
	if info := readNetworkInfo(opts.EnvFile); info != nil {
		tracker.SetNetwork(info)
	}
	networkTicker := time.NewTicker(networkRefresh)
	defer networkTicker.Stop()
	stopNetwork := make(chan struct{})
	defer close(stopNetwork)
	go watchNetwork(tracker, func() *status.NetworkInfo {
		return readNetworkInfo(opts.EnvFile)
	}, networkTicker.C, stopNetwork)

	// The driver needs the client and the client's callbacks need the
	// driver; nothing is received before Connect.
	var drv *driver.Driver
	client, err := mqtt.NewRealClient(opts.Broker, mqtt.Topics{Device: opts.Device},
		func(cmd logic.RemoteCommand) { drv.Submit(cmd) },
		func() { drv.RequestBroadcast() },
	)
	if err != nil {
		return errors.Wrap(err, "init mqtt")
	}

	drv = driver.New(driver.Options{
		Registry:  reg,
		Reader:    reader,
		Publisher: client,
		Conn:      client,
		Tracker:   tracker,
		Heartbeat: opts.Heartbeat,
		Start:     start,
	})

	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	if opts.HTTP != "" {
		srv := web.New(opts.HTTP, tracker, drv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", opts.HTTP)
	}

	log.WithFields(log.Fields{
		"version":   Version,
		"commit":    Commit,
		"poll":      opts.Poll,
		"broker":    opts.Broker,
		"device":    opts.Device,
		"heartbeat": opts.Heartbeat,
		"actuators": len(hw.Actuators),
		"inputs":    len(hw.Inputs),
	}).Info("started")

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(drv, time.Now, ticker.C, sigCh)
}

// runLoop owns the driver: every state change happens on this goroutine.
func runLoop(drv *driver.Driver, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	drv.Startup(now())

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			drv.Shutdown(now(), signalName(s))
			return nil

		case <-tick:
			drv.Step(now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// networkRefresh is how often the pi-helper env file is re-read.
const networkRefresh = time.Minute

// watchNetwork keeps the tracker's network info current until stop is
// closed. The file is read here rather than in the control loop.
func watchNetwork(tracker *status.Tracker, read func() *status.NetworkInfo, tick <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-tick:
			if info := read(); info != nil {
				tracker.SetNetwork(info)
			}
		}
	}
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

// readNetworkInfo reads the pi-helper env file, falling back to the process
// environment when the file is missing. pi-helper rewrites the file when the
// network changes.
func readNetworkInfo(path string) *status.NetworkInfo {
	get := os.Getenv
	if path != "" {
		if env, err := godotenv.Read(path); err == nil {
			get = func(key string) string { return env[key] }
		} else if !os.IsNotExist(errors.Cause(err)) {
			log.WithError(err).Debugf("read %s", path)
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

func pressedString(on bool) string {
	if on {
		return "pressed"
	}
	return "released"
}
