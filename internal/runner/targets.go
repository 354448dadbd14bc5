package runner

import (
	"math/rand/v2"
	"strings"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomLen    = 5
)

// RandomAlphanumeric returns n characters drawn from [A-Za-z0-9].
// Not suitable for anything security related.
func RandomAlphanumeric(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

// BuildTargets returns one URL per request. With randomize set every URL is
// baseURL/{5 chars}?q={5 chars}; otherwise each entry is baseURL unchanged.
// Random strings may repeat across requests.
func BuildTargets(baseURL string, n int, randomize bool, random func(int) string) []string {
	if random == nil {
		random = RandomAlphanumeric
	}
	targets := make([]string, n)
	for i := range targets {
		if !randomize {
			targets[i] = baseURL
			continue
		}
		targets[i] = baseURL + "/" + random(randomLen) + "?q=" + random(randomLen)
	}
	return targets
}
