package record_test

import (
	"bytes"
	"math/rand"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

// genRecords builds n records with keys uniform over [0, keyMax) and
// payload lengths uniform over [PayloadMin, PayloadMax], mirroring
// generate_records.cpp's distributions so tests exercise the same record
// shapes the original verifier was built against.
func genRecords(rng *rand.Rand, n int, keyMax uint64) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		length := record.PayloadMin + rng.Intn(record.PayloadMax-record.PayloadMin+1)
		payload := make([]byte, length)
		rng.Read(payload)
		recs[i] = record.Record{Key: rng.Uint64() % keyMax, Payload: payload}
	}
	return recs
}

// encodeAll serializes recs back-to-back with no framing, as a record file.
func encodeAll(recs []record.Record) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		if err := record.WriteTo(&buf, r); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}
