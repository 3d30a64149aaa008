package ratelimit

import "strings"

// KeyForClient builds a limiter key for one client on one route.
func KeyForClient(route, clientIP string) string {
	route = strings.TrimSpace(route)
	clientIP = strings.TrimSpace(clientIP)
	if route == "" || clientIP == "" {
		return ""
	}
	return "ip:" + clientIP + ":" + route
}
