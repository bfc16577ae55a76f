// Package simhash fingerprints text so near-identical pages can be detected
// by Hamming distance.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"sync"
	"unicode"
)

// DefaultThreshold is the largest distance still treated as a duplicate.
const DefaultThreshold = 3

const shingleSize = 3

// Fingerprint returns the 64-bit SimHash of text over lower-cased word
// shingles. Text shorter than one shingle is hashed word by word; empty text
// yields 0.
func Fingerprint(text string) uint64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return 0
	}

	features := words
	if len(words) >= shingleSize {
		features = make([]string, 0, len(words)-shingleSize+1)
		for i := 0; i+shingleSize <= len(words); i++ {
			features = append(features, strings.Join(words[i:i+shingleSize], " "))
		}
	}

	var vector [64]int
	h := fnv.New64a()
	for _, f := range features {
		h.Reset()
		h.Write([]byte(f))
		sum := h.Sum64()
		for i := range 64 {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i, v := range vector {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Set remembers fingerprints and reports near duplicates. It is safe for
// concurrent use.
type Set struct {
	threshold int

	mu  sync.Mutex
	fps []uint64
}

// NewSet returns an empty set; threshold < 0 selects DefaultThreshold.
func NewSet(threshold int) *Set {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Set{threshold: threshold}
}

// Add records fp unless it is within the threshold of one already seen, and
// reports whether it was new. The zero fingerprint is always new and never
// recorded.
func (s *Set) Add(fp uint64) bool {
	if fp == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seen := range s.fps {
		if Distance(seen, fp) <= s.threshold {
			return false
		}
	}
	s.fps = append(s.fps, fp)
	return true
}

// Len returns the number of distinct fingerprints recorded.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fps)
}
