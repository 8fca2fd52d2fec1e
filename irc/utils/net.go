// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package utils

import (
	"net"
	"net/netip"
	"strings"
)

var (
	loopbackNets = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	}
)

// ParseNetList parses a list of addresses and CIDRs as they would appear in
// the config file (e.g., proxy-allowed-from). "localhost" expands to the
// IPv4 and IPv6 loopback networks.
func ParseNetList(netList []string) (nets []netip.Prefix, err error) {
	for _, netStr := range netList {
		if netStr == "localhost" {
			nets = append(nets, loopbackNets...)
			continue
		}
		var network netip.Prefix
		if strings.IndexByte(netStr, '/') != -1 {
			network, err = netip.ParsePrefix(netStr)
		} else {
			var addr netip.Addr
			addr, err = netip.ParseAddr(netStr)
			if err == nil {
				network = netip.PrefixFrom(addr, addr.BitLen())
			}
		}
		if err != nil {
			return nil, err
		}
		nets = append(nets, network.Masked())
	}
	return
}

// IPInNets tests whether ip is contained in any of nets.
func IPInNets(ip netip.Addr, nets []netip.Prefix) bool {
	ip = ip.Unmap()
	for _, network := range nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// AddrToIP returns the IP of a net.Addr; unix domain sockets are treated as
// IPv4 loopback. It returns the zero Addr if there is no IP.
func AddrToIP(addr net.Addr) netip.Addr {
	switch addr := addr.(type) {
	case *net.TCPAddr:
		ip, _ := netip.AddrFromSlice(addr.IP)
		return ip.Unmap()
	case *net.UnixAddr:
		return netip.AddrFrom4([4]byte{127, 0, 0, 1})
	default:
		return netip.Addr{}
	}
}

// HandleXForwardedFor returns the address a trusted proxy forwarded the
// request for. It walks the X-Forwarded-For chain backwards and stops at the
// first address that is not itself a trusted proxy. If the immediate peer is
// not trusted, the header is ignored and the peer's own address is returned.
func HandleXForwardedFor(remoteAddr string, xForwardedFor string, trusted []netip.Prefix) (result netip.Addr) {
	// http.Request.RemoteAddr is "127.0.0.1:23784" over TCP, "@" over a unix socket
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		result = addrPort.Addr().Unmap()
	} else {
		result = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}

	if xForwardedFor == "" || !IPInNets(result, trusted) {
		return
	}

	forwarded := strings.Split(xForwardedFor, ",")
	for i := len(forwarded) - 1; i >= 0; i-- {
		proxied, err := netip.ParseAddr(strings.TrimSpace(forwarded[i]))
		if err != nil {
			return
		}
		result = proxied.Unmap()
		if !IPInNets(result, trusted) {
			return
		}
	}
	return
}
