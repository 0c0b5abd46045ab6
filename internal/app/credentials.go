package app

import (
	"crypto/rand"
	"math/big"
)

const (
	alphanumerics = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	uppercase     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// generateCredential produces a one-time principal password: ten
// alphanumerics, a dash, and four uppercase letters.
func generateCredential() (string, error) {
	head, err := randomString(alphanumerics, 10)
	if err != nil {
		return "", err
	}
	tail, err := randomString(uppercase, 4)
	if err != nil {
		return "", err
	}
	return head + "-" + tail, nil
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[v.Int64()]
	}
	return string(out), nil
}
