// Package clientip extracts the client IP address from HTTP requests.
//
// Headers are checked in this order, first valid address wins:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry)
//  4. X-Real-IP
//  5. RemoteAddr
//
// Addresses are normalized with netip. Unspecified addresses (0.0.0.0, ::)
// are skipped. When nothing parses, the raw RemoteAddr is returned.
//
//	ip := clientip.GetIP(r)
//
// Only trust these headers behind a proxy that overwrites them.
package clientip
