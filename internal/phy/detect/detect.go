// Package detect finds the PHY on a management bus and picks its driver
// by vendor identifier.
package detect

import (
	"fmt"
	"log/slog"

	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/phy/ksz8091"
	"github.com/knieriem/tinygo-gem/internal/phy/lan8742a"
)

// Open probes the bus and returns a driver for the first PHY found.
// A missing PHY is reported as phy.ErrNotFound, an unknown vendor as an
// error wrapping ErrUnsupported.
func Open(mdio phy.MDIO, logger *slog.Logger) (phy.Device, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr, ok := phy.ProbeAddr(mdio)
	if !ok {
		return nil, phy.ErrNotFound
	}
	id, err := phy.ReadID(mdio, addr)
	if err != nil {
		return nil, fmt.Errorf("reading phy id at %d: %w", addr, err)
	}
	oui := id.OUI()
	logger.Info("phy found",
		slog.Int("addr", int(addr)),
		slog.String("oui", oui.String()),
		slog.Int("model", int(id.Model())),
		slog.Int("rev", int(id.Revision())))

	switch oui {
	case ksz8091.OUI:
		return ksz8091.New(mdio, addr, logger), nil
	case lan8742a.OUI:
		return lan8742a.New(mdio, addr), nil
	}
	return nil, fmt.Errorf("%w: oui %s model %#02x", ErrUnsupported, oui, id.Model())
}
