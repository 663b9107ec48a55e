package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the scenario run by the simulator.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	PHY     PHYConfig     `yaml:"phy"`
	Peer    PeerConfig    `yaml:"peer"`
	Traffic TrafficConfig `yaml:"traffic"`
	Faults  FaultConfig   `yaml:"faults"`
	Logging LoggingConfig `yaml:"logging"`
	Stats   StatsConfig   `yaml:"stats"`
}

type DeviceConfig struct {
	HWAddr          string `yaml:"hwaddr"`
	Addr            string `yaml:"addr"`
	RxDescriptors   int    `yaml:"rx_descriptors"`
	TxDescriptors   int    `yaml:"tx_descriptors"`
	ChecksumOffload bool   `yaml:"checksum_offload"`
	BurstLength     int    `yaml:"burst_length"`

	// PollInterval bounds the time between two looks at the rings when
	// no interrupt arrives.
	PollInterval time.Duration `yaml:"poll_interval"`
}

type PHYConfig struct {
	Addr uint8  `yaml:"addr"`
	ID1  uint16 `yaml:"id1"`
	ID2  uint16 `yaml:"id2"`

	// LinkUpAfter keeps the cable unplugged for the given time.
	LinkUpAfter time.Duration `yaml:"link_up_after"`
	LinkTimeout time.Duration `yaml:"link_timeout"`
}

type PeerConfig struct {
	HWAddr string `yaml:"hwaddr"`
	Addr   string `yaml:"addr"`
}

type TrafficConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Count       int           `yaml:"count"`
	PayloadSize int           `yaml:"payload_size"`
	ARP         bool          `yaml:"arp"`
}

type FaultConfig struct {
	// FailEvery makes every n-th frame sent by the device fail with a
	// retry limit error. Zero disables fault injection.
	FailEvery int `yaml:"fail_every"`
}

type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	TimestampFormat  string `yaml:"timestamp_format"`
}

type StatsConfig struct {
	Listen    string        `yaml:"listen"`
	Path      string        `yaml:"path"`
	Namespace string        `yaml:"namespace"`
	Subsystem string        `yaml:"subsystem"`
	Interval  time.Duration `yaml:"interval"`
}

// scenario holds the parsed addresses of a validated Config.
type scenario struct {
	hw, peerHW     net.HardwareAddr
	addr, peerAddr netip.Addr
}

func defaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			HWAddr:          "02:00:00:00:00:01",
			Addr:            "192.168.7.2",
			RxDescriptors:   16,
			TxDescriptors:   16,
			ChecksumOffload: true,
			BurstLength:     1,
			PollInterval:    50 * time.Millisecond,
		},
		PHY: PHYConfig{
			ID1:         0x0022,
			ID2:         0x1561,
			LinkTimeout: 5 * time.Second,
		},
		Peer: PeerConfig{
			HWAddr: "02:00:00:00:00:02",
			Addr:   "192.168.7.1",
		},
		Traffic: TrafficConfig{
			Interval:    time.Second,
			Count:       4,
			PayloadSize: 56,
			ARP:         true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Stats: StatsConfig{
			Path:      "/metrics",
			Namespace: "gemsim",
			Interval:  10 * time.Second,
		},
	}
}

// loadConfig reads a scenario file on top of the defaults. An empty path
// selects the defaults alone.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	return parseConfig(c, b)
}

func parseConfig(c Config, b []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	return c, nil
}

func (c *Config) validate() (*scenario, error) {
	var s scenario
	var err error

	if s.hw, err = parseHW("device.hwaddr", c.Device.HWAddr); err != nil {
		return nil, err
	}
	if s.peerHW, err = parseHW("peer.hwaddr", c.Peer.HWAddr); err != nil {
		return nil, err
	}
	if s.addr, err = parseAddr("device.addr", c.Device.Addr); err != nil {
		return nil, err
	}
	if s.peerAddr, err = parseAddr("peer.addr", c.Peer.Addr); err != nil {
		return nil, err
	}
	if c.Device.RxDescriptors < 2 || c.Device.TxDescriptors < 2 {
		return nil, fmt.Errorf("device: rings need at least 2 descriptors")
	}
	if c.Device.PollInterval <= 0 {
		return nil, fmt.Errorf("device.poll_interval must be positive")
	}
	if c.PHY.Addr > 31 {
		return nil, fmt.Errorf("phy.addr %d out of range", c.PHY.Addr)
	}
	if c.Traffic.Interval <= 0 {
		return nil, fmt.Errorf("traffic.interval must be positive")
	}
	if c.Traffic.Count < 0 || c.Traffic.PayloadSize < 0 || c.Faults.FailEvery < 0 {
		return nil, fmt.Errorf("traffic and fault settings must not be negative")
	}
	if c.Traffic.PayloadSize > 1400 {
		return nil, fmt.Errorf("traffic.payload_size %d exceeds 1400", c.Traffic.PayloadSize)
	}
	if c.Stats.Listen != "" && c.Stats.Path == "" {
		return nil, fmt.Errorf("stats.path should not be empty")
	}
	if c.Stats.Listen != "" && c.Stats.Interval <= 0 {
		return nil, fmt.Errorf("stats.interval must be positive")
	}
	return &s, nil
}

func parseHW(key, s string) (net.HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("%s: %q is not an Ethernet address", key, s)
	}
	return hw, nil
}

func parseAddr(key, s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return a, fmt.Errorf("%s: %w", key, err)
	}
	if !a.Is4() {
		return a, fmt.Errorf("%s: %v is not an IPv4 address", key, a)
	}
	return a, nil
}
