//go:build unix

package command

import (
	"fmt"
	"os"
	"syscall"
)

func suspend(p *os.Process) error {
	if err := p.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("command: pause: %w", err)
	}
	return nil
}

func resume(p *os.Process) error {
	if err := p.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("command: resume: %w", err)
	}
	return nil
}
