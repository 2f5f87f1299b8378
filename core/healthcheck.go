package core

import (
	"fmt"
	"os"
	"time"
)

// VerifyHealthCheck reports whether the file at path exists and was modified within maxAge,
// i.e. whether scheduled runs are still publishing. Prints “ok” or the reason for failure, and
// returns a process exit status.
func VerifyHealthCheck(path string, maxAge time.Duration, now time.Time) int {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("failed: %v\n", err)
		return 1
	}
	if info.IsDir() {
		fmt.Printf("failed: %s is a directory\n", path)
		return 1
	}

	if age := now.Sub(info.ModTime()); maxAge > 0 && age > maxAge {
		fmt.Printf("failed: %s is stale (%s old, limit %s)\n", path, age.Round(time.Second), maxAge)
		return 1
	}

	fmt.Println("ok")
	return 0
}
