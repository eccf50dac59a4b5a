package security

import (
	"net/netip"
	"net/url"
	"strings"
)

var (
	pfxRFC1918_10    = netip.MustParsePrefix("10.0.0.0/8")
	pfxRFC1918_172   = netip.MustParsePrefix("172.16.0.0/12")
	pfxRFC1918_192   = netip.MustParsePrefix("192.168.0.0/16")
	pfxCGNAT         = netip.MustParsePrefix("100.64.0.0/10")
	pfxLinkLocal4    = netip.MustParsePrefix("169.254.0.0/16")
	pfxULA           = netip.MustParsePrefix("fc00::/7")
	pfxLinkLocal6    = netip.MustParsePrefix("fe80::/10")
	pfxMetadataAWSv6 = netip.MustParsePrefix("fd00:ec2::254/128")
)

// InternalTarget reports whether endpoint names the host itself, a private
// network or a cloud metadata address. Only literal addresses and localhost
// are recognised; names are never resolved during analysis.
func InternalTarget(endpoint string) bool {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || strings.HasPrefix(raw, "/") {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.Trim(u.Hostname(), "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return internalAddr(addr)
}

func internalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(), addr.IsUnspecified(), addr.IsLoopback(), addr.IsMulticast():
		return true
	case pfxLinkLocal4.Contains(addr), pfxLinkLocal6.Contains(addr), pfxMetadataAWSv6.Contains(addr):
		return true
	}
	if addr.Is4() {
		return pfxRFC1918_10.Contains(addr) || pfxRFC1918_172.Contains(addr) || pfxRFC1918_192.Contains(addr) || pfxCGNAT.Contains(addr)
	}
	return pfxULA.Contains(addr) || addr.IsPrivate()
}
