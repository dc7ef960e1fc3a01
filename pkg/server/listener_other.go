//go:build !unix

package server

import "syscall"

// setReuseAddrControl is a no-op outside the unix build: Config.ReuseAddress
// is honored where SO_REUSEADDR is meaningful, and silently ignored
// elsewhere rather than failing the bind.
func setReuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
