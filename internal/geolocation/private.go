package geolocation

import "net"

// v4Range is a precomputed inclusive numeric bound pair.
type v4Range struct {
	start uint32
	end   uint32
}

// Private and reserved IPv4 ranges: RFC1918, loopback, link-local.
var privateV4Ranges = []v4Range{
	{start: 0x0A000000, end: 0x0AFFFFFF}, // 10.0.0.0/8
	{start: 0x7F000000, end: 0x7FFFFFFF}, // 127.0.0.0/8
	{start: 0xA9FE0000, end: 0xA9FEFFFF}, // 169.254.0.0/16
	{start: 0xAC100000, end: 0xAC1FFFFF}, // 172.16.0.0/12
	{start: 0xC0A80000, end: 0xC0A8FFFF}, // 192.168.0.0/16
}

// PrivateIP reports whether the address falls in a private or reserved range.
// The IPv4 path is a plain integer comparison against precomputed bounds; it
// runs on every request-adjacent lookup and must stay cheap.
func PrivateIP(raw string) bool {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return false
	}

	if v4 := parsed.To4(); v4 != nil {
		u := uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
		for _, r := range privateV4Ranges {
			if u >= r.start && u <= r.end {
				return true
			}
		}
		return false
	}

	// IPv6 equivalents: loopback ::1, link-local fe80::/10, unique-local fc00::/7.
	if parsed.IsLoopback() || parsed.IsLinkLocalUnicast() || parsed.IsPrivate() {
		return true
	}
	return false
}
