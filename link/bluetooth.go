package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"tinygo.org/x/bluetooth"

	"github.com/WataNekko/esp-drum-midi-controller/blemidi"
)

// advertisedService16 is the 16-bit UUID placed in the advertising
// payload. Note this is 0x180F (Battery Service), not the MIDI service:
// it is what the controller has always advertised and scanner filters key
// on it, so it stays. The MIDI service lives only in the GATT database.
const advertisedService16 = 0x180F

// BluetoothRadio is the production Radio on tinygo.org/x/bluetooth: one
// GATT service holding the MIDI I/O characteristic (read, write without
// response, notify), plus connectable undirected advertising carrying the
// flags, the 16-bit service list and the complete local name.
type BluetoothRadio struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	char    bluetooth.Characteristic
	events  chan Event
	log     *slog.Logger

	mu      sync.Mutex
	inbound []byte
}

// NewBluetoothRadio enables the BLE stack, registers the MIDI service and
// configures advertising under the given device name.
func NewBluetoothRadio(adapter *bluetooth.Adapter, name string, log *slog.Logger) (*BluetoothRadio, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &BluetoothRadio{
		adapter: adapter,
		events:  make(chan Event, 8),
		log:     log,
	}

	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable BLE stack: %w", err)
	}

	serviceUUID, err := bluetooth.ParseUUID(blemidi.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service UUID: %w", err)
	}
	charUUID, err := bluetooth.ParseUUID(blemidi.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic UUID: %w", err)
	}

	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		kind := EventDisconnected
		if connected {
			kind = EventConnected
		}
		select {
		case r.events <- Event{Kind: kind}:
		default:
			// Must not block the stack's callback; the manager has
			// fallen far behind if this ever happens.
			r.log.Warn("dropping connection event", "connected", connected)
		}
	})

	// The characteristic's readable default value is an encoded MIDI
	// Reset, so a peer that reads before any hit sees a valid packet.
	reset, err := blemidi.EncodeAt(time.Now(), midi.Reset())
	if err != nil {
		return nil, fmt.Errorf("encode default value: %w", err)
	}

	if err := adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &r.char,
				UUID:   charUUID,
				Value:  reset.Bytes(),
				Flags: bluetooth.CharacteristicReadPermission |
					bluetooth.CharacteristicWriteWithoutResponsePermission |
					bluetooth.CharacteristicNotifyPermission,
				WriteEvent: r.handleWrite,
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("add MIDI service: %w", err)
	}

	adv := adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.New16BitUUID(advertisedService16)},
	}); err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}
	r.adv = adv

	r.log.Info("radio ready", "name", name)
	return r, nil
}

// handleWrite stores a peer's write after a size check. Payloads are kept
// verbatim and never interpreted.
func (r *BluetoothRadio) handleWrite(client bluetooth.Connection, offset int, value []byte) {
	p, err := blemidi.Decode(value)
	if err != nil {
		r.log.Warn("dropping inbound packet", "err", err)
		return
	}
	r.mu.Lock()
	r.inbound = append(r.inbound[:0], p.Bytes()...)
	r.mu.Unlock()
	r.log.Debug("inbound packet stored", "len", len(value))
}

// LastInbound returns a copy of the most recent packet a peer wrote, or
// nil if none arrived yet.
func (r *BluetoothRadio) LastInbound() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inbound == nil {
		return nil
	}
	out := make([]byte, len(r.inbound))
	copy(out, r.inbound)
	return out
}

func (r *BluetoothRadio) Advertise() error { return r.adv.Start() }

func (r *BluetoothRadio) StopAdvertising() error { return r.adv.Stop() }

func (r *BluetoothRadio) Events() <-chan Event { return r.events }

// Notify pushes one packet to the subscribed peer through the
// characteristic.
func (r *BluetoothRadio) Notify(p []byte) error {
	_, err := r.char.Write(p)
	return err
}

// Run parks until ctx is done. The bluetooth stack pumps its own I/O on
// this platform; the method exists so radios that do need a pump share
// the same fatal-error contract.
func (r *BluetoothRadio) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
