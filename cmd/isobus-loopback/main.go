// Command isobus-loopback is a runnable demonstration of the Isobus facade
// and VT working-set, modeled on the teacher's sample/tun_tcp_echo: wire a
// driver to the stack, run its process loop, and log what happens.
// Grounded on sample/tun_tcp_echo/main.go's flag-free "positional args,
// dial one concrete transport, loop forever" shape; the SocketCAN branch
// uses candriver, otherwise an in-memory driver.Loopback exercises the
// full claim/handshake/event path with no hardware attached.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenIsobus/OpenIsobus/candriver"
	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/isobus"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
	"github.com/OpenIsobus/OpenIsobus/workingset"
)

// tickPeriod is how often Process/Tick run. spec.md §5 only requires the
// host to call process(now) "as frequently as it can"; a real loop atop a
// hardware CAN controller would instead wake on Driver readiness.
const tickPeriod = 10 * time.Millisecond

// samplePool is a minimal two-object pool (a working-set object and a
// data mask) encoded with this module's length-prefixed object framing
// (objectpool package), enough to drive the handshake to completion
// against a VT that merely echoes EndOfObjectPool.
var samplePool = buildSamplePool()

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <loopback|can:<ifname>> [metrics-addr]", os.Args[0])
	}

	drv, err := openDriver(os.Args[1])
	if err != nil {
		log.Fatalf("isobus-loopback: %v", err)
	}

	if len(os.Args) >= 3 {
		metrics.MustRegisterAll(prometheus.DefaultRegisterer)
		http.Handle("/metrics", promhttp.Handler())
		addr := os.Args[2]
		go func() {
			log.Printf("isobus-loopback: serving /metrics on %s", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Printf("isobus-loopback: metrics server: %v", err)
			}
		}()
	}

	cfg := isobus.Config{
		Name: pdu.NameBuilder{
			SelfConfigurable: true,
			IndustryGroup:    2, // agricultural and forestry equipment
			DeviceClass:      0,
			Function:         129, // implement-generic ECU
			ManufacturerCode: 0x7FF,
			IdentityNumber:   1,
		}.Build(),
		PreferredAddress: 0x80,
		Baud:             250000,
	}

	ib := isobus.New(cfg, drv)
	if err := ib.Start(); err != nil {
		log.Fatalf("isobus-loopback: Start: %v", err)
	}
	defer ib.Stop()

	ws := workingset.New(ib, samplePool)

	var now uint64
	lastState := ws.State()
	for range time.Tick(tickPeriod) {
		now += uint64(tickPeriod.Milliseconds())

		ib.Process(now)
		ws.Tick(now)

		if ws.State() != lastState {
			log.Printf("isobus-loopback: working-set state %s -> %s", lastState, ws.State())
			lastState = ws.State()
		}
		for {
			ev, ok := ws.NextEvent()
			if !ok {
				break
			}
			log.Printf("isobus-loopback: event %+v", ev)
		}
	}
}

// openDriver parses the spec positional argument into a concrete Driver:
// "loopback" for an in-memory bus that echoes a scripted VT, or
// "can:<ifname>" for a real SocketCAN interface.
func openDriver(spec string) (driver.Driver, error) {
	if spec == "loopback" {
		return newScriptedLoopback(), nil
	}
	if len(spec) > 4 && spec[:4] == "can:" {
		return candriver.New(spec[4:]), nil
	}
	return nil, &unsupportedDriverError{spec}
}

type unsupportedDriverError struct{ spec string }

func (e *unsupportedDriverError) Error() string {
	return "unsupported driver spec " + e.spec + " (want \"loopback\" or \"can:<ifname>\")"
}
