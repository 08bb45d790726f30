// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package refresh

import (
	"fmt"
	"time"

	ping "github.com/sparrc/go-ping"

	log "github.com/hpe-storage/dbrefresh/logger"
)

const (
	pingCount   = 3
	pingTimeout = 5 * time.Second
)

// Preflight pings each endpoint the refresh will touch and logs a warning for
// any that does not answer.  It is a diagnosis aid only and never gates the
// operation; ICMP may be filtered where the management APIs are reachable, and
// the authoritative connectivity errors come from the real calls.
func Preflight(endpoints ...string) {
	log.Tracef(">>>>> Preflight called, endpoints=%v", endpoints)
	defer log.Trace("<<<<< Preflight")

	for _, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		if err := pingEndpoint(endpoint); err != nil {
			log.Warnf("preflight: %v did not answer ping, err=%v", endpoint, err)
			continue
		}
		log.Infof("preflight: %v is reachable", endpoint)
	}
}

func pingEndpoint(endpoint string) error {
	pinger, err := ping.NewPinger(endpoint)
	if err != nil {
		return err
	}
	pinger.Count = pingCount
	pinger.Timeout = pingTimeout
	pinger.SetPrivileged(true)
	pinger.Run()

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return fmt.Errorf("no ping reply from %v", endpoint)
	}
	return nil
}
