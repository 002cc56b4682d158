package store

import (
	"fmt"
	"os"
	"sync/atomic"
)

var cookieSeq atomic.Uint64

// lockCookie returns a cookie unique within this process, so every
// lock acquisition can be released or broken individually.
func lockCookie() string {
	return fmt.Sprintf("%d.%d", os.Getpid(), cookieSeq.Add(1))
}
