package scraper

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/aluiziolira/backlog-match/models"
)

// Fingerprint hashes a canonical serialization of a page batch. Every title
// is length-prefixed so that field boundaries cannot shift between batches.
func Fingerprint(records []models.Record) models.Fingerprint {
	h := sha256.New()
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], uint64(len(records)))
	h.Write(buf[:])
	for _, r := range records {
		binary.BigEndian.PutUint64(buf[:], uint64(len(r.Title)))
		h.Write(buf[:])
		h.Write([]byte(r.Title))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(r.Rating))
		h.Write(buf[:])
	}

	var fp models.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}
