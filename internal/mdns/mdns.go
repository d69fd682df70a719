// Package mdns provides optional mDNS/Bonjour advertisement of the
// powerwatch control endpoint.
//
// When enabled, the host announces itself on the local network via
// DNS-SD so dashboards and sibling hosts can find the status endpoint
// without manual address entry. Advertisement is opt-in; discovery only
// reveals presence, the control surface still enforces its own auth.
package mdns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for powerwatch hosts.
const ServiceType = "_powerwatch._tcp"

// ProtocolVersion identifies the advertised control-surface version.
const ProtocolVersion = "1"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the control-server port to advertise.
	Port int

	// Name is a human-readable name for this host.
	// Defaults to the system hostname if empty.
	Name string

	// WakeLockName is included in the TXT records so discovery
	// output can distinguish multiple coordinators on one network.
	WakeLockName string
}

// Advertiser manages mDNS/DNS-SD service registration.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates a new mDNS advertiser with the given configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{
		config: cfg,
	}
}

// Start begins advertising the service via mDNS.
//
// Start is safe to call multiple times; subsequent calls are no-ops
// if already running.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Already running
	if a.server != nil {
		return nil
	}

	name := a.config.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "powerwatch"
		} else {
			name = hostname
		}
	}

	// TXT records give clients basic metadata before they connect.
	// DNS TXT strings are capped at 255 bytes each; everything here is
	// far below that.
	txtRecords := []string{
		fmt.Sprintf("version=%s", ProtocolVersion),
		fmt.Sprintf("name=%s", name),
	}
	if a.config.WakeLockName != "" {
		txtRecords = append(txtRecords, fmt.Sprintf("lock=%s", a.config.WakeLockName))
	}

	server, err := zeroconf.Register(
		name,        // Instance name (e.g., "MacBook-Pro")
		ServiceType, // Service type
		"local.",    // Domain
		a.config.Port,
		txtRecords,
		nil, // Network interfaces (nil = all)
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops the mDNS advertisement and unregisters the service.
// It is safe to call Stop multiple times or on an advertiser that
// was never started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning returns true if the advertiser is currently running.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// DiscoveredHost is a powerwatch host found via mDNS discovery.
type DiscoveredHost struct {
	// Name is the human-readable name of the host.
	Name string

	// Host is the IP address or hostname.
	Host string

	// Port is the control-server port.
	Port int

	// WakeLockName is the advertised wake lock name, if any.
	WakeLockName string

	// Version is the advertised protocol version.
	Version string
}

// Discover searches for powerwatch hosts on the local network until the
// context expires and returns whatever was found.
func Discover(ctx context.Context) ([]DiscoveredHost, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		hosts []DiscoveredHost
		mu    sync.Mutex
		wg    sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			host := DiscoveredHost{
				Name: entry.Instance,
				Port: entry.Port,
			}

			// Prefer IPv4 address
			if len(entry.AddrIPv4) > 0 {
				host.Host = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				host.Host = entry.AddrIPv6[0].String()
			}

			for _, txt := range entry.Text {
				switch {
				case strings.HasPrefix(txt, "lock="):
					host.WakeLockName = txt[len("lock="):]
				case strings.HasPrefix(txt, "version="):
					host.Version = txt[len("version="):]
				case strings.HasPrefix(txt, "name="):
					host.Name = txt[len("name="):]
				}
			}

			mu.Lock()
			hosts = append(hosts, host)
			mu.Unlock()
		}
	}()

	err = resolver.Browse(ctx, ServiceType, "local.", entries)
	if err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// zeroconf closes the entries channel once the context is done.
	<-ctx.Done()
	wg.Wait()

	return hosts, nil
}
