//go:build !unix

package main

import (
	"errors"
	"net"
)

func inheritedListener() (net.Listener, bool, error) {
	return nil, false, nil
}

func detach(net.Listener) error {
	return errors.New("daemon mode is not supported on this platform")
}
