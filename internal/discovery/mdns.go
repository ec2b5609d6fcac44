// ABOUTME: mDNS service discovery for Live Planting audio servers
// ABOUTME: Servers advertise _liveplanting._tcp; players look it up at startup
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service advertised by audio servers
const ServiceType = "_liveplanting._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	StreamPath  string // WebSocket audio endpoint, default "/"
	VizPath     string // visualization endpoint, default "/viz"
}

// Manager handles mDNS advertisement
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name       string
	Host       string
	Port       int
	StreamPath string
	VizPath    string
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StreamURL returns the WebSocket URL for streaming audio
func (s *ServerInfo) StreamURL() string {
	return "ws://" + s.Addr() + s.StreamPath
}

// VizURL returns the WebSocket URL for visualization frames
func (s *ServerInfo) VizURL() string {
	return "ws://" + s.Addr() + s.VizPath
}

// HTTPURL returns the base URL for HTTP commands
func (s *ServerInfo) HTTPURL() string {
	return "http://" + s.Addr()
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.StreamPath == "" {
		config.StreamPath = "/"
	}
	if config.VizPath == "" {
		config.VizPath = "/viz"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Advertise announces this server via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop stops advertising
func (m *Manager) Stop() {
	m.cancel()
}

// Discover queries the local network and returns the first server found
func Discover(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	found := make(chan *ServerInfo, 1)

	go func() {
		for entry := range entries {
			info := entryToServer(entry)
			if info == nil {
				continue
			}
			log.Printf("Discovered server: %s at %s", info.Name, info.Addr())
			select {
			case found <- info:
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdns.Query(params)
		close(entries)
	}()

	select {
	case info := <-found:
		return info, nil
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("mdns query failed: %w", err)
		}
		// Query finished; an entry may still be in flight
		select {
		case info := <-found:
			return info, nil
		case <-time.After(50 * time.Millisecond):
			return nil, fmt.Errorf("no %s server found", ServiceType)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func txtRecords(c Config) []string {
	return []string{"path=" + c.StreamPath, "viz=" + c.VizPath}
}

// entryToServer converts an mDNS entry, or returns nil if it has no IPv4
// address
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	info := &ServerInfo{
		Name:       strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host:       entry.AddrV4.String(),
		Port:       entry.Port,
		StreamPath: "/",
		VizPath:    "/viz",
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.StreamPath = value
		case "viz":
			info.VizPath = value
		}
	}
	return info
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
