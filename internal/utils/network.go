package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientInfo identifies the caller of a request for rate limiting and audit
type ClientInfo struct {
	IP        string
	UserAgent string
}

// GetClientInfo extracts the client IP and user agent from the request
func GetClientInfo(c *gin.Context) ClientInfo {
	return ClientInfo{
		IP:        GetRealIP(c),
		UserAgent: GetUserAgent(c),
	}
}

// GetRealIP extracts the client IP address from the request.
//
// Priority order:
//  1. X-Real-IP, when it is a public address (set by Nginx and similar proxies)
//  2. the first public address in X-Forwarded-For, else its first valid entry
//  3. the host part of the connection's remote address
func GetRealIP(c *gin.Context) string {
	realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))
	if realIP != "" && isValidIP(realIP) && !isPrivateIP(net.ParseIP(realIP)) {
		return realIP
	}

	if forwarded := c.Request.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		for _, ipStr := range ips {
			clientIP := strings.TrimSpace(ipStr)
			if isValidIP(clientIP) && !isPrivateIP(net.ParseIP(clientIP)) && !IsLocalhost(clientIP) {
				return clientIP
			}
		}
		if first := strings.TrimSpace(ips[0]); isValidIP(first) {
			return first
		}
	}

	return remoteIP(c)
}

// remoteIP is the peer address of the connection. gin's ClientIP would
// consult the forwarding headers again.
func remoteIP(c *gin.Context) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(c.Request.RemoteAddr)
	}
	return host
}

// GetUserAgent extracts the User-Agent header from the request
func GetUserAgent(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return "Unknown"
	}
	return ua
}

// IsLocalhost checks if an IP address is localhost
func IsLocalhost(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

var privateRanges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"} {
		_, subnet, _ := net.ParseCIDR(cidr)
		nets = append(nets, subnet)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, subnet := range privateRanges {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}
