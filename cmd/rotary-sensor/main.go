// Command rotary-sensor decodes quadrature rotary encoders on GPIO pins and
// publishes rotation and button events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/rotary-sensor/internal/config"
	"github.com/sweeney/rotary-sensor/internal/gpio"
	"github.com/sweeney/rotary-sensor/internal/logic"
	"github.com/sweeney/rotary-sensor/internal/mqtt"
	"github.com/sweeney/rotary-sensor/internal/rotary"
	"github.com/sweeney/rotary-sensor/internal/status"
	"github.com/sweeney/rotary-sensor/internal/uart"
	"github.com/sweeney/rotary-sensor/internal/web"
)

type options struct {
	chip       string
	name       string
	wiring     rotary.Wiring
	configFile string
	encoders   string
	poll       time.Duration
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	serial     string
	baud       int
	printState bool
	wsBroker   string
}

func main() {
	var o options
	var clk, dir, btn int
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO character device")
	flag.IntVar(&clk, "pin-clk", int(gpio.DefaultPinCLK), "BCM pin number for CLK")
	flag.IntVar(&dir, "pin-dir", int(gpio.DefaultPinDIR), "BCM pin number for DIR")
	flag.IntVar(&btn, "pin-btn", int(gpio.DefaultPinBTN), "BCM pin number for the push-button")
	flag.StringVar(&o.name, "name", "knob", "Encoder name used in topics (single encoder mode)")
	flag.StringVar(&o.configFile, "config", "", "Encoder wiring file (overrides the pin flags)")
	flag.StringVar(&o.encoders, "encoders", "", "Comma separated encoder sections to load from --config")
	flag.DurationVar(&o.poll, "poll", 10*time.Millisecond, "Snapshot interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.serial, "serial", "", "Serial device for JSON line events (empty to disable)")
	flag.IntVar(&o.baud, "baud", 115200, "Serial baud rate")
	flag.BoolVar(&o.printState, "print-state", false, "Print current encoder state and exit")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	o.wiring = rotary.Wiring{CLK: gpio.Pin(clk), DIR: gpio.Pin(dir), BTN: gpio.Pin(btn)}
	o.wsBroker = resolveWSBroker(*wsBroker, o.broker)
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	wirings, err := loadEncoders(o)
	if err != nil {
		return err
	}

	ctrl, err := gpio.NewRealController(o.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer ctrl.Close()

	encoders, err := beginEncoders(ctrl, wirings, time.Now())
	if err != nil {
		return err
	}
	defer closeEncoders(encoders)

	if o.printState {
		for _, e := range encoders {
			fmt.Println(describe(e.name, e.enc.Sample()))
		}
		return nil
	}

	mqttPub, err := mqtt.NewRealPublisher(o.broker, clientID())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	publisher := fanout{mqttPub}
	if o.serial != "" {
		serialPub, err := uart.Open(o.serial, o.baud)
		if err != nil {
			mqttPub.Close()
			return err
		}
		publisher = append(publisher, serialPub)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Chip:        o.chip,
		Broker:      o.broker,
		HTTPPort:    o.httpAddr,
		WSBroker:    o.wsBroker,
		Serial:      o.serial,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	updateTracker(tracker, encoders, mqttPub)

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: encoders=%d slots=%d/%d poll=%v broker=%s heartbeat=%v",
		len(encoders), rotary.SlotsInUse(), rotary.Capacity, o.poll, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(encoders, publisher, mqttPub, tracker, o.heartbeat, time.Now, ticker.C, sigCh)
}

// loadEncoders returns the encoders to run, from the config file when one is
// given and from the pin flags otherwise.
func loadEncoders(o options) ([]config.Encoder, error) {
	if o.configFile != "" {
		names := splitNames(o.encoders)
		encs, err := config.Load(o.configFile, names)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return encs, nil
	}
	if err := config.Validate(o.wiring); err != nil {
		return nil, fmt.Errorf("pin flags: %w", err)
	}
	return []config.Encoder{{Name: o.name, Wiring: o.wiring}}, nil
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// tracked is one running encoder and the detector that turns its snapshots
// into events.
type tracked struct {
	name string
	enc  *rotary.Encoder
	det  *logic.Detector
}

// beginEncoders starts every encoder. An encoder that cannot get a dispatch
// slot still runs on the loop's polling alone.
func beginEncoders(ctrl gpio.Controller, wirings []config.Encoder, start time.Time) ([]*tracked, error) {
	encoders := make([]*tracked, 0, len(wirings))
	for _, w := range wirings {
		enc := rotary.New(ctrl, w.Wiring)
		if err := enc.Begin(); err != nil {
			closeEncoders(encoders)
			return nil, fmt.Errorf("encoder %s: %w", w.Name, err)
		}
		if !enc.Registered() {
			log.Printf("encoder %s (%s): no interrupt slot, polling", w.Name, w.Wiring)
		}
		encoders = append(encoders, &tracked{
			name: w.Name,
			enc:  enc,
			det:  logic.NewDetector(w.Name, start),
		})
	}
	return encoders, nil
}

func closeEncoders(encoders []*tracked) {
	for _, e := range encoders {
		if err := e.enc.Close(); err != nil {
			log.Printf("close encoder %s: %v", e.name, err)
		}
	}
}

func runLoop(encoders []*tracked, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker(tracker, encoders, mqttStatus)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			for _, e := range encoders {
				// A registered encoder may still have channels without
				// interrupts; Read changes nothing when the pins are unchanged.
				e.enc.Read()
				events := e.det.Process(logic.Input{
					Count: e.enc.Value(),
					Bits:  e.enc.State(),
					Time:  t,
				})
				for _, event := range events {
					log.Printf("event: %s %s (count=%d delta=%d button=%s)",
						event.Encoder, event.Type, event.Count, event.Delta, event.Button)
					if err := publisher.Publish(event); err != nil {
						log.Printf("publish error: %v", err)
					}
				}
			}

			if tracker != nil {
				updateTracker(tracker, encoders, mqttStatus)
			}

			if len(encoders) == 0 {
				continue
			}
			// All detectors baseline on the same tick, so the first one
			// paces the daemon heartbeat.
			hbData := encoders[0].det.CheckHeartbeat(t, heartbeat)
			if hbData == nil {
				continue
			}
			total := totalCounts(encoders)
			log.Printf("heartbeat: uptime=%v cw=%d ccw=%d press=%d release=%d",
				hbData.Uptime, total.CW, total.CCW, total.Press, total.Release)

			hbEvent := mqtt.SystemEvent{
				Timestamp: hbData.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func updateTracker(tracker *status.Tracker, encoders []*tracked, mqttStatus mqtt.ConnectionStatus) {
	for _, e := range encoders {
		w := e.enc.Wiring()
		tracker.Update(status.Encoder{
			Name:       e.name,
			Pins:       status.Pins{CLK: int(w.CLK), DIR: int(w.DIR), BTN: int(w.BTN)},
			Count:      e.enc.Value(),
			Bits:       e.enc.State(),
			Interrupts: e.enc.Registered(),
			Counts:     e.det.EventCountsSnapshot(),
		})
	}
	tracker.SetSlots(rotary.SlotsInUse(), rotary.Capacity)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func totalCounts(encoders []*tracked) logic.EventCounts {
	var total logic.EventCounts
	for _, e := range encoders {
		c := e.det.EventCountsSnapshot()
		total.CW += c.CW
		total.CCW += c.CCW
		total.Press += c.Press
		total.Release += c.Release
	}
	return total
}

func describe(name string, b logic.Bits) string {
	return fmt.Sprintf("%s: CLK=%s DIR=%s BTN=%s", name, level(b.CLK()), level(b.DIR()), level(b.BTN()))
}

func level(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "IDLE"
}

// fanout publishes to several publishers, carrying on past failures.
type fanout []mqtt.Publisher

func (f fanout) Publish(event logic.Event) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Publish(event))
	}
	return errors.Join(errs...)
}

func (f fanout) PublishSystem(event mqtt.SystemEvent) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.PublishSystem(event))
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// clientID names the MQTT session after the host. Brokers drop an older
// session when a new one connects with the same ID, so without a hostname a
// random suffix is used.
func clientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "rotary-sensor-" + uuid.NewString()[:8]
	}
	return "rotary-sensor-" + host
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

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
