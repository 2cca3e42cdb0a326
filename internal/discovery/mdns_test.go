package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewService checks the zone carries the instance, port and TXT records.
func TestNewService(t *testing.T) {
	t.Parallel()

	service, err := newService(Config{
		Instance: "lab-master",
		Port:     13000,
		Target:   "255.255.255.255:13001",
		NodeID:   "node-1",
		IPs:      []net.IP{net.IPv4(192, 0, 2, 10)},
	})
	require.NoError(t, err)

	require.Equal(t, "lab-master", service.Instance)
	require.Equal(t, ServiceType, service.Service)
	require.Equal(t, 13000, service.Port)
	require.Equal(t, []string{
		"proto=timesync",
		"target=255.255.255.255:13001",
		"node_id=node-1",
	}, service.TXT)
}

// TestTXTRecords omits empty values.
func TestTXTRecords(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"proto=timesync"}, txtRecords(Config{}))
}

// TestIPv4Addresses keeps only non-loopback IPv4 networks.
func TestIPv4Addresses(t *testing.T) {
	t.Parallel()

	addrs := []net.Addr{
		&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.IPv4(10, 1, 2, 3), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.IPv4(10, 9, 9, 9)},
	}

	require.Equal(t, []net.IP{net.IPv4(10, 1, 2, 3).To4()}, ipv4Addresses(addrs))
}
