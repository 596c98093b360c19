package control

import (
	"fmt"
	"os"
)

// FifoPath is the enforcer's command pipe, per spec §4.J / §6.
const FifoPath = "/run/fapolicyd/fapolicyd.fifo"

// command is the one-byte code a fifo write sends.
type command byte

const (
	cmdReloadTrust command = '1'
	cmdFlushCache  command = '2'
	cmdReloadRules command = '3'
)

// ReloadTrust signals the enforcer to reload its trust database.
func ReloadTrust(path string) error { return send(path, cmdReloadTrust) }

// FlushCache signals the enforcer to flush its subject/object caches.
func FlushCache(path string) error { return send(path, cmdFlushCache) }

// ReloadRules signals the enforcer to reload its rule database.
func ReloadRules(path string) error { return send(path, cmdReloadRules) }

// send opens the fifo write-only, writes one "<code>\n" frame, and closes.
func send(path string, c command) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("control: open fifo %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte{byte(c), '\n'}); err != nil {
		return fmt.Errorf("control: write fifo %s: %w", path, err)
	}
	return nil
}
