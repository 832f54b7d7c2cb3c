package services

import (
	"math/rand"
	"sync"
	"time"
)

const codeLetters = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	codeMu   sync.Mutex
	codeRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// generateAccountCode builds a short referral-style code: a role prefix
// plus random lowercase alphanumerics.
func generateAccountCode(prefix string) string {
	codeMu.Lock()
	defer codeMu.Unlock()
	b := make([]byte, 6)
	for i := range b {
		b[i] = codeLetters[codeRand.Intn(len(codeLetters))]
	}
	return prefix + string(b)
}
