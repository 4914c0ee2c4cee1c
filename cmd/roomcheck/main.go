// roomcheck probes one device directly and prints the sample, without a
// running monitor. Handy for verifying credentials and reachability.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roomops/vcwatch/internal/config"
	"github.com/roomops/vcwatch/internal/domain"
	"github.com/roomops/vcwatch/internal/probe"
)

func main() {
	cfg := config.FromEnv()

	addr := strings.TrimSpace(strings.Join(os.Args[1:], ""))
	if addr == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Device address (IP or hostname): ")
		raw, _ := reader.ReadString('\n')
		addr = strings.TrimSpace(raw)
	}
	if addr == "" {
		fmt.Fprintln(os.Stderr, "An address is required.")
		os.Exit(1)
	}

	kind := domain.ProbeHealthCheck
	if os.Getenv("PROBE_KIND") == string(domain.ProbeTestCall) {
		kind = domain.ProbeTestCall
	}

	transport := probe.NewHTTPTransport(
		cfg.DeviceAPIUser, cfg.DeviceAPIPass,
		cfg.CloudBaseURL, cfg.CloudAPIToken,
		cfg.ProbeTimeout,
	)
	prober := probe.NewDeviceProber(transport, cfg.ProbeTimeout)

	room := &domain.Room{
		ID:             "roomcheck",
		Name:           addr,
		Address:        addr,
		VendorDeviceID: os.Getenv("VENDOR_DEVICE_ID"),
	}

	sample, err := prober.Probe(context.Background(), room, kind)
	if err != nil {
		// Terminal sample carries outcome + detail, same shape the
		// scheduler would persist.
		sample = probe.FailureSample(room, kind, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sample)

	if !sample.OK() {
		os.Exit(1)
	}
}
