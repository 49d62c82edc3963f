// Package bucket provides deterministic context bucketing for rollouts and
// variant assignment. It hashes the flag id together with a stickiness value
// (user id, session id) and an optional salt, so:
//   - The same subject always gets the same result for a flag (deterministic
//     across calls and across process restarts)
//   - Distribution is even across buckets (xxHash)
//   - Raising a rollout from 10% to 20% only adds subjects, never removes
package bucket

import (
	"github.com/cespare/xxhash/v2"
)

// Rollout returns a deterministic bucket in 1..100 for rollout inclusion.
// A subject is inside an N% rollout iff Rollout(...) <= N.
func Rollout(flagID, stickiness, salt string) int {
	return hash(flagID, stickiness, salt)%100 + 1
}

// Variant returns a deterministic bucket in 0..99 for variant assignment.
func Variant(flagID, subject, salt string) int {
	return hash(flagID, subject, salt) % 100
}

func hash(flagID, subject, salt string) int {
	// Delimiters keep ("a","bc") and ("ab","c") from colliding.
	key := flagID + ":" + subject + ":" + salt
	return int(xxhash.Sum64String(key) % 100)
}
