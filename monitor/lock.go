package monitor

import (
	"fmt"
	"os"
	"path/filepath"
)

// acquireScanLock takes the single-owner advisory lock for a monitoring
// pass via exclusive create. A held lock means another pass is in flight
// and the caller should skip, not queue.
func acquireScanLock(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f, nil
}

func releaseScanLock(f *os.File) {
	if f == nil {
		return
	}
	path := f.Name()
	f.Close()
	_ = os.Remove(path)
}
