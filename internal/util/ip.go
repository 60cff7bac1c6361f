package util

import (
	"net"
	"strings"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-pantheon/fabrica-util/errors"
)

var ErrInvalidHostPort = errors.New("invalid host:port")

// Extract turns a listen address into one a client can dial. Unspecified
// hosts are replaced with the first private interface address.
func Extract(hostPort string) (string, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidHostPort, "%s: %v", hostPort, err)
	}

	if len(host) > 0 && host != "0.0.0.0" && host != "[::]" && host != "::" {
		return net.JoinHostPort(host, port), nil
	}

	ip := InternalIP()
	if ip == "" {
		ip = "127.0.0.1"
	}

	return net.JoinHostPort(ip, port), nil
}

// InternalIP returns the first private IPv4 address of an up, non-loopback
// interface, or "" when there is none.
func InternalIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
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
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}

			if isPrivateIP(ipnet.IP.String()) {
				return ipnet.IP.String()
			}
		}
	}

	return ""
}

func isPrivateIP(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	return ip.IsPrivate()
}

// ClientIP returns the address of the client behind a connection. Proxy
// headers captured at connection setup win over the peer address.
func ClientIP(header transport.Header, remoteAddr string) string {
	if header != nil {
		if xff := header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if ip := strings.TrimSpace(header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}

	return host
}
