package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gemsim"
	"github.com/knieriem/tinygo-gem/internal/ethdump"
	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/phy/detect"
	"github.com/knieriem/tinygo-gem/internal/responder"
)

var errLinkDown = errors.New("PHY link not up")

// result summarizes what the peer saw on the wire.
type result struct {
	Requests    int
	EchoReplies int
	ARPReplies  int
	Dropped     int
}

// simulator runs the driver against the peripheral model. The device
// side answers through a responder, the peer side generates requests.
type simulator struct {
	l    *logrus.Logger
	cfg  Config
	sc   *scenario
	dev  *gemsim.Device
	ctrl *gem.Controller
	resp *responder.Responder
	wire chan []byte

	// replies queued by the device side, for fault injection
	replies int
}

func newSimulator(l *logrus.Logger, cfg Config, sc *scenario) (*simulator, error) {
	dev := gemsim.New(gemsim.Config{
		PHYAddr:  cfg.PHY.Addr,
		PHYID:    phy.ID{ID1: cfg.PHY.ID1, ID2: cfg.PHY.ID2},
		LinkDown: cfg.PHY.LinkUpAfter > 0,
		Logger:   newSlogLogger(l, "gemsim"),
	})

	nRx, nTx := cfg.Device.RxDescriptors, cfg.Device.TxDescriptors
	rx, err := gem.NewRxRing(make([]gem.RxDesc, nRx), make([]uint32, nRx*gem.BufferSize/4))
	if err != nil {
		dev.Close()
		return nil, err
	}
	tx, err := gem.NewTxRing(make([]gem.TxDesc, nTx), make([]uint32, nTx*gem.BufferSize/4))
	if err != nil {
		dev.Close()
		return nil, err
	}
	ctrl, err := gem.New(dev.Regs(), rx, tx, gem.Config{
		HardwareAddr:    sc.hw,
		Speed100:        true,
		FullDuplex:      true,
		ChecksumOffload: cfg.Device.ChecksumOffload,
		BurstLength:     cfg.Device.BurstLength,
		Logger:          newSlogLogger(l, "gem"),
	})
	if err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.Attach(rx, tx); err != nil {
		dev.Close()
		return nil, err
	}
	ctrl.MDIO().SetPollLimit(1000)

	resp, err := responder.New(l, responder.Config{HardwareAddr: sc.hw, Addr: sc.addr})
	if err != nil {
		dev.Close()
		return nil, err
	}

	s := &simulator{
		l:    l,
		cfg:  cfg,
		sc:   sc,
		dev:  dev,
		ctrl: ctrl,
		resp: resp,
		wire: make(chan []byte, 64),
	}
	dev.OnTransmit(s.onWire)
	return s, nil
}

func (s *simulator) close() {
	s.dev.Close()
}

// run lets the peer send its requests while the driver answers them, and
// returns once the peer is done or ctx is cancelled.
func (s *simulator) run(ctx context.Context, stats *statsServer) (result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	ready := make(chan struct{})

	if d := s.cfg.PHY.LinkUpAfter; d > 0 {
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-time.After(d):
				s.l.Info("Plugging in cable")
				s.dev.PHY().SetLink(true)
			}
			return nil
		})
	}
	g.Go(func() error {
		return s.drive(ctx, ready)
	})
	var res result
	g.Go(func() (err error) {
		defer cancel()
		res, err = s.peer(ctx, ready)
		return err
	})
	if stats != nil {
		g.Go(func() error {
			return stats.run(ctx)
		})
	}
	err := g.Wait()
	return res, err
}

// drive brings up the PHY and then services the MAC, woken by its
// interrupt line or by the poll interval.
func (s *simulator) drive(ctx context.Context, ready chan<- struct{}) error {
	dev, err := detect.Open(s.ctrl.MDIO(), newSlogLogger(s.l, "phy"))
	if err != nil {
		return fmt.Errorf("phy: %w", err)
	}
	if err := dev.Reset(); err != nil {
		return fmt.Errorf("phy reset: %w", err)
	}
	st, err := waitForLinkUp(ctx, dev, s.cfg.PHY.LinkTimeout)
	if err != nil {
		return err
	}
	s.l.WithField("link", st.String()).Info("Link up")
	close(ready)

	t := time.NewTicker(s.cfg.Device.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.dev.Interrupts():
		case <-t.C:
		}
		if ev := s.ctrl.HandleInterrupt(); ev != 0 {
			s.l.WithField("events", ev.String()).Trace("MAC interrupt")
		}
		s.poll()
	}
}

func waitForLinkUp(ctx context.Context, dev phy.Device, timeout time.Duration) (phy.LinkStatus, error) {
	deadline := time.Now().Add(timeout)
	for {
		st, err := dev.LinkStatus()
		if err != nil {
			return st, err
		}
		if st.Up {
			return st, nil
		}
		if time.Now().After(deadline) {
			return st, errLinkDown
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// poll handles all frames waiting in the receive ring.
func (s *simulator) poll() {
	for {
		rx, tx, ok := s.ctrl.Receive()
		if !ok {
			return
		}
		err := rx.Consume(func(frame []byte) error {
			if s.l.IsLevelEnabled(logrus.TraceLevel) {
				var b strings.Builder
				ethdump.Frame(&b, frame)
				s.l.Trace("Received frame\n" + b.String())
			}
			reply := s.resp.Respond(frame)
			if reply == nil {
				return nil
			}
			s.replies++
			if n := s.cfg.Faults.FailEvery; n > 0 && s.replies%n == 0 {
				s.dev.FailNext(gem.TxStatus{RetryLimit: true})
			}
			return tx.Consume(len(reply), func(buf []byte) error {
				copy(buf, reply)
				return nil
			})
		})
		if err != nil {
			s.l.WithError(err).Warn("Failed to handle frame")
		}
	}
}

// onWire receives the frames sent by the MAC.
func (s *simulator) onWire(frame []byte) {
	select {
	case s.wire <- frame:
	default:
		s.l.Warn("Peer not keeping up, frame lost")
	}
}

// peer sends an ARP request and then echo requests at the configured
// interval, collecting the answers.
func (s *simulator) peer(ctx context.Context, ready <-chan struct{}) (result, error) {
	var res result
	select {
	case <-ctx.Done():
		return res, nil
	case <-ready:
	}

	tc := s.cfg.Traffic
	payload := make([]byte, tc.PayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	seq := 0
	send := func() error {
		seq++
		f, err := responder.EchoRequest(s.sc.peerHW, s.sc.hw, s.sc.peerAddr, s.sc.addr, 0x4745, uint16(seq), payload)
		if err != nil {
			return err
		}
		s.deliver(f, &res)
		return nil
	}

	if tc.ARP {
		f, err := responder.ARPRequest(s.sc.peerHW, s.sc.peerAddr, s.sc.addr)
		if err != nil {
			return res, err
		}
		s.deliver(f, &res)
	}
	if err := send(); err != nil {
		return res, err
	}

	t := time.NewTicker(tc.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return res, nil
		case f := <-s.wire:
			s.observe(f, &res)
		case <-t.C:
			if tc.Count > 0 && seq >= tc.Count {
				return res, nil
			}
			if err := send(); err != nil {
				return res, err
			}
		}
	}
}

func (s *simulator) deliver(f []byte, res *result) {
	s.l.WithField("frame", responder.Describe(f)).Debug("Peer sending")
	res.Requests++
	if err := s.dev.Deliver(f); err != nil {
		res.Dropped++
		s.l.WithError(err).Warn("Frame not accepted by MAC")
	}
}

func (s *simulator) observe(f []byte, res *result) {
	s.l.WithField("frame", responder.Describe(f)).Info("Peer received")

	packet := gopacket.NewPacket(f, layers.LayerTypeEthernet, gopacket.Lazy)
	if arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP); ok && arp.Operation == layers.ARPReply {
		res.ARPReplies++
		return
	}
	if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok && icmp.TypeCode.Type() == layers.ICMPv4TypeEchoReply {
		res.EchoReplies++
	}
}

// updateMetrics copies the counters of the simulated wire and the
// responder into r.
func (s *simulator) updateMetrics(r metrics.Registry) {
	ds := s.dev.Stats()
	metrics.GetOrRegisterGauge("wire.rx.frames", r).Update(int64(ds.RxFrames))
	metrics.GetOrRegisterGauge("wire.rx.filtered", r).Update(int64(ds.RxFiltered))
	metrics.GetOrRegisterGauge("wire.rx.overruns", r).Update(int64(ds.RxOverruns))
	metrics.GetOrRegisterGauge("wire.tx.frames", r).Update(int64(ds.TxFrames))
	metrics.GetOrRegisterGauge("wire.tx.failed", r).Update(int64(ds.TxFailed))

	rs := s.resp.Stats()
	metrics.GetOrRegisterGauge("responder.arp_replies", r).Update(int64(rs.ARPReplies))
	metrics.GetOrRegisterGauge("responder.echo_replies", r).Update(int64(rs.EchoReplies))
	metrics.GetOrRegisterGauge("responder.ignored", r).Update(int64(rs.Ignored))
	metrics.GetOrRegisterGauge("responder.malformed", r).Update(int64(rs.Malformed))
}
