package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nightingale/internal/config"
)

const wwwAuthenticate = `Basic realm="Nightingale server", charset="UTF-8"`

// RequireAuth denies any request whose Authorization header is not an
// exact match for the configured password.
func RequireAuth(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != password {
			log.Warn().Str("path", c.Request.URL.Path).Msg("httpapi: incorrect or missing authorization")
			c.Header("WWW-Authenticate", wwwAuthenticate)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "incorrect or missing authorization"})
			return
		}
		c.Next()
	}
}

// IPFilter allows only clients inside the configured CIDR ranges. A
// request from a family with no configured range is denied, so
// restricting both families requires specifying both.
func IPFilter(cfg *config.FilterConfig) (gin.HandlerFunc, error) {
	var v4, v6 *netip.Prefix
	if cfg.IPv4 != "" {
		p, err := netip.ParsePrefix(cfg.IPv4)
		if err != nil {
			return nil, fmt.Errorf("httpapi: filter_ips.ipv4 %q: %w", cfg.IPv4, err)
		}
		v4 = &p
	}
	if cfg.IPv6 != "" {
		p, err := netip.ParsePrefix(cfg.IPv6)
		if err != nil {
			return nil, fmt.Errorf("httpapi: filter_ips.ipv6 %q: %w", cfg.IPv6, err)
		}
		v6 = &p
	}

	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			return
		}
		addr = addr.Unmap()

		allowed := false
		if addr.Is4() {
			allowed = v4 != nil && v4.Contains(addr)
		} else {
			allowed = v6 != nil && v6.Contains(addr)
		}
		if !allowed {
			log.Warn().Str("addr", host).Msg("httpapi: address rejected by ip filter")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			return
		}
		c.Next()
	}, nil
}
