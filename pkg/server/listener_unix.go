//go:build unix

package server

import "syscall"

// setReuseAddrControl sets SO_REUSEADDR on the listening socket before
// bind, so a restarted server can rebind a port still in TIME_WAIT.
func setReuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
