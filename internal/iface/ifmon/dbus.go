package ifmon

// NetworkManagerMonitor implements Monitor atop NetworkManager's D-Bus
// API (github.com/godbus/dbus/v5). It is the package's only event source
// besides StubMonitor, which cmd/dlepd falls back to when the system bus
// is unavailable; there is no netlink-based monitor.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	nmBusName         = "org.freedesktop.NetworkManager"
	nmDeviceIface     = "org.freedesktop.NetworkManager.Device"
	nmStateChanged    = "StateChanged"
	nmDeviceActivated = 100 // NM_DEVICE_STATE_ACTIVATED
)

// NetworkManagerMonitor subscribes to org.freedesktop.NetworkManager's
// per-device StateChanged signal and translates it into InterfaceEvent.
type NetworkManagerMonitor struct {
	log    *slog.Logger
	conn   *dbus.Conn
	events chan InterfaceEvent

	closeOnce sync.Once
}

// NewNetworkManagerMonitor connects to the system bus and prepares to
// watch device state changes; Run must still be called to begin
// receiving signals.
func NewNetworkManagerMonitor(logger *slog.Logger) (*NetworkManagerMonitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("ifmon: connect system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(nmDeviceIface),
		dbus.WithMatchMember(nmStateChanged),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ifmon: subscribe to %s: %w", nmStateChanged, err)
	}

	return &NetworkManagerMonitor{
		log:    logger.With(slog.String("component", "ifmon.networkmanager")),
		conn:   conn,
		events: make(chan InterfaceEvent, 16),
	}, nil
}

// Run forwards NetworkManager device state signals as InterfaceEvent
// until ctx is cancelled.
func (m *NetworkManagerMonitor) Run(ctx context.Context) error {
	defer close(m.events)

	signals := make(chan *dbus.Signal, 16)
	m.conn.Signal(signals)
	defer m.conn.RemoveSignal(signals)

	m.log.Info("networkmanager interface monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info("networkmanager interface monitor stopped")
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if sig.Name != nmDeviceIface+"."+nmStateChanged {
				continue
			}
			ev, ok := m.toEvent(sig)
			if !ok {
				continue
			}
			select {
			case m.events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (m *NetworkManagerMonitor) toEvent(sig *dbus.Signal) (InterfaceEvent, bool) {
	if len(sig.Body) < 1 {
		return InterfaceEvent{}, false
	}
	newState, ok := sig.Body[0].(uint32)
	if !ok {
		return InterfaceEvent{}, false
	}

	ifName, err := m.deviceInterfaceName(sig.Path)
	if err != nil {
		m.log.Debug("failed to resolve device interface name", "path", sig.Path, "error", err)
		return InterfaceEvent{}, false
	}

	return InterfaceEvent{IfName: ifName, Up: newState >= nmDeviceActivated}, true
}

func (m *NetworkManagerMonitor) deviceInterfaceName(path dbus.ObjectPath) (string, error) {
	obj := m.conn.Object(nmBusName, path)
	v, err := obj.GetProperty(nmDeviceIface + ".Interface")
	if err != nil {
		return "", err
	}
	name, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected property type %T", v.Value())
	}
	return name, nil
}

// Events returns the channel of interface state change events.
func (m *NetworkManagerMonitor) Events() <-chan InterfaceEvent {
	return m.events
}

// Close releases the underlying D-Bus connection.
func (m *NetworkManagerMonitor) Close() error {
	var err error
	m.closeOnce.Do(func() { err = m.conn.Close() })
	return err
}

var _ Monitor = (*NetworkManagerMonitor)(nil)
