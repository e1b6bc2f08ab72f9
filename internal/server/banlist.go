// Package server filters incoming connections against the configured set
// of banned addresses.
package server

import "net"

// BanList is the process-wide set of banned remote IPs. It is populated at
// startup and read-only afterwards, so lookups need no locking.
type BanList struct {
	addrs map[string]struct{}
}

// NewBanList builds a ban list from the configured addresses.
func NewBanList(addrs []string) *BanList {
	b := &BanList{addrs: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		if a != "" {
			b.addrs[a] = struct{}{}
		}
	}
	return b
}

// IsBanned reports whether the given remote IP is banned.
func (b *BanList) IsBanned(addr string) bool {
	_, banned := b.addrs[addr]
	return banned
}

// hostOnly strips the port from a remote address, returning the bare IP.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
