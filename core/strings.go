package core

import (
	"crypto/sha256"
	"fmt"
)

func SHA256(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
