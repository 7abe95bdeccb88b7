// Package scanner is the security scanner collaborator: it flags traffic to
// externally routable addresses and snapshots the asset inventory.
package scanner

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// PublicTrafficNote describes every indicator raised by ScanNetworkActivity.
const PublicTrafficNote = "Outbound traffic to public IP detected"

// Reserved ranges that are valid unicast but never routed on the internet.
var nonRoutable = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// Indicator is one flagged log entry.
type Indicator struct {
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	Message   string    `json:"message,omitempty"`
}

// Scanner wraps the control plane inventory.
type Scanner struct {
	cp     controlplane.ControlPlane
	now    func() time.Time
	logger zerolog.Logger
}

func New(cp controlplane.ControlPlane, log zerolog.Logger) *Scanner {
	return &Scanner{cp: cp, now: time.Now, logger: log}
}

// IsExternal reports whether ip parses and is routable on the internet.
func IsExternal(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range nonRoutable {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// ScanNetworkActivity returns one indicator per entry whose IP is external,
// in input order. Entries without a timestamp are stamped with the scan time.
func (s *Scanner) ScanNetworkActivity(entries []models.LogEntry) []Indicator {
	var flagged []Indicator
	for _, e := range entries {
		if !IsExternal(e.IP) {
			continue
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = s.now().UTC()
		}
		flagged = append(flagged, Indicator{
			IP:        e.IP,
			Timestamp: ts,
			Note:      PublicTrafficNote,
			Message:   e.Message,
		})
	}
	s.logger.Debug().Int("entries", len(entries)).Int("flagged", len(flagged)).Msg("Scanned network activity")
	return flagged
}

// ListAssets returns the current inventory snapshot.
func (s *Scanner) ListAssets(ctx context.Context) ([]models.Asset, error) {
	return s.cp.ListAssets(ctx)
}
