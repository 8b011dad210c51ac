//go:build unix

package dashboard

import (
	"os"

	"golang.org/x/sys/unix"
)

// bubbletea 会拦截 Ctrl+C，主程序收不到 SIGINT；这里主动补发一次
func sendInterrupt() error {
	return unix.Kill(os.Getpid(), unix.SIGINT)
}
