package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"

	"github.com/oshokin/timesync/internal/logger"
)

// ServiceType is the mDNS service type of a timesync master.
const ServiceType = "_timesync._udp"

// errNoAddresses is returned when no usable interface address was found.
var errNoAddresses = errors.New("no usable interface addresses")

// Config describes the advertised master.
type Config struct {
	// Instance is the mDNS instance name. Empty means the hostname.
	Instance string
	// Port is the UDP port the master answers DelayReq on.
	Port int
	// Target is the broadcast destination, published in a TXT record.
	Target string
	// NodeID identifies the master process, published in a TXT record.
	NodeID string
	// IPs overrides the advertised addresses. Empty means all non-loopback IPv4 addresses.
	IPs []net.IP
}

// Advertise announces the master until ctx is canceled.
func Advertise(ctx context.Context, cfg Config) error {
	service, err := newService(cfg)
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("create mdns server: %w", err)
	}

	logger.InfoKV(ctx, "Advertising mDNS service",
		"instance", service.Instance,
		"service", ServiceType,
		"port", cfg.Port,
	)

	<-ctx.Done()

	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutdown mdns server: %w", err)
	}

	return nil
}

// newService builds the mDNS zone for the master.
func newService(cfg Config) (*mdns.MDNSService, error) {
	instance := cfg.Instance
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("get hostname: %w", err)
		}

		instance = hostname
	}

	ips := cfg.IPs
	if len(ips) == 0 {
		var err error

		ips, err = localIPs()
		if err != nil {
			return nil, fmt.Errorf("get local IPs: %w", err)
		}
	}

	if len(ips) == 0 {
		return nil, errNoAddresses
	}

	service, err := mdns.NewMDNSService(
		instance,
		ServiceType,
		"",
		"",
		cfg.Port,
		ips,
		txtRecords(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	return service, nil
}

// txtRecords lists the key=value pairs published with the service.
func txtRecords(cfg Config) []string {
	records := []string{"proto=timesync"}

	if cfg.Target != "" {
		records = append(records, "target="+cfg.Target)
	}

	if cfg.NodeID != "" {
		records = append(records, "node_id="+cfg.NodeID)
	}

	return records
}

// localIPs returns the IPv4 addresses of every running non-loopback interface.
func localIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		ips = append(ips, ipv4Addresses(addrs)...)
	}

	return ips, nil
}

// ipv4Addresses keeps the non-loopback IPv4 addresses of an interface.
func ipv4Addresses(addrs []net.Addr) []net.IP {
	var ips []net.IP

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}

		if ip := ipnet.IP.To4(); ip != nil {
			ips = append(ips, ip)
		}
	}

	return ips
}
