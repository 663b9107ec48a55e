// Command gemsim runs the GEM driver against a model of the peripheral
// and its PHY, with a peer on the simulated wire that pings the device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// A version string that can be set with
//
//	-ldflags "-X main.Build=SOMEVERSION"
//
// at compile-time.
var Build string

func init() {
	if Build == "" {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		Build = strings.TrimPrefix(info.Main.Version, "v")
	}
}

func main() {
	configPath := flag.String("config", "", "Path to a scenario file; the built-in scenario is used if empty")
	configTest := flag.Bool("test", false, "Test the config and print the end result. Non zero exit indicates a faulty config")
	printVersion := flag.Bool("version", false, "Print version")
	printUsage := flag.Bool("help", false, "Print command line usage")

	flag.Parse()

	if *printVersion {
		fmt.Printf("Version: %s\n", Build)
		os.Exit(0)
	}

	if *printUsage {
		flag.Usage()
		os.Exit(0)
	}

	l := logrus.New()
	l.Out = os.Stdout

	c, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}
	sc, err := c.validate()
	if err != nil {
		fmt.Printf("invalid config: %s\n", err)
		os.Exit(1)
	}
	if err := configLogger(l, c.Logging); err != nil {
		fmt.Printf("failed to configure the logger: %s\n", err)
		os.Exit(1)
	}

	if *configTest {
		b, err := yaml.Marshal(c)
		if err != nil {
			l.WithError(err).Error("Failed to print config")
			os.Exit(1)
		}
		os.Stdout.Write(b)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, l, c, sc)
	if err != nil {
		l.WithError(err).Error("Simulation failed")
		os.Exit(1)
	}
	l.WithFields(logrus.Fields{
		"requests":     res.Requests,
		"echo_replies": res.EchoReplies,
		"arp_replies":  res.ARPReplies,
		"dropped":      res.Dropped,
	}).Info("Simulation done")
}

func run(ctx context.Context, l *logrus.Logger, c Config, sc *scenario) (result, error) {
	sim, err := newSimulator(l, c, sc)
	if err != nil {
		return result{}, err
	}
	defer sim.close()

	var stats *statsServer
	if c.Stats.Listen != "" {
		stats = newStatsServer(l, c.Stats, Build, sim.ctrl.Stats, sim.updateMetrics)
	}
	return sim.run(ctx, stats)
}
