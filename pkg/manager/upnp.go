package manager

import (
	"net"
	"os"

	"github.com/huin/goupnp/dcps/internetgateway2"
)

// setupUPnP maps the SSU port on the gateway. Failures are expected in
// containers and behind locked-down routers, so everything here is
// log-and-continue with a manual-forwarding hint.
func (m *Manager) setupUPnP() {
	if inContainer() {
		m.logger.Warn().Msg("running in a container, UPnP may not be available; consider host networking")
	}

	clients, _, err := internetgateway2.NewWANIPConnection2Clients()
	if err != nil || len(clients) == 0 {
		m.upnpFallback()
		return
	}

	localIP := localIPv4()
	if localIP == "" {
		m.upnpFallback()
		return
	}

	port := uint16(m.cfg.SSU.Port)
	mapped := false
	for _, client := range clients {
		err := client.AddPortMapping("", port, "UDP", port, localIP, true, "voxa-netnode", 0)
		if err != nil {
			m.logger.Warn().Err(err).Uint16("port", port).Msg("UPnP port mapping failed")
			continue
		}
		mapped = true
		m.logger.Info().Uint16("port", port).Str("local_ip", localIP).Msg("UPnP port mapping added")
	}
	if !mapped {
		m.upnpFallback()
	}
}

func (m *Manager) upnpFallback() {
	m.logger.Warn().
		Int("ssu_port", m.cfg.SSU.Port).
		Str("api", m.cfg.API.ListenAddr).
		Msg("UPnP unavailable; please manually forward these ports on your router")
}

// inContainer detects the common container markers.
func inContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	return false
}

// localIPv4 finds the outbound interface address without sending traffic.
func localIPv4() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
