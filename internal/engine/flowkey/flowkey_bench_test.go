package flowkey

import (
	"NetSentry/internal/model"
	"math/rand"
	"net/netip"
	"testing"
)

func randomTuples(n int) []model.FiveTuple {
	r := rand.New(rand.NewSource(1))
	tuples := make([]model.FiveTuple, n)
	for i := range tuples {
		var a, b [4]byte
		r.Read(a[:])
		r.Read(b[:])
		tuples[i] = model.FiveTuple{
			SrcIP:    netip.AddrFrom4(a),
			DstIP:    netip.AddrFrom4(b),
			SrcPort:  uint16(r.Intn(65536)),
			DstPort:  uint16(r.Intn(65536)),
			Protocol: model.ProtocolTCP,
		}
	}
	return tuples
}

func BenchmarkNormalize(b *testing.B) {
	tuples := randomTuples(1 << 12)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Normalize(tuples[i&(len(tuples)-1)])
	}
}

func BenchmarkFlowTable(b *testing.B) {
	tuples := randomTuples(1 << 12)

	b.Run("Key", func(b *testing.B) {
		table := make(map[Key]int)
		for i := 0; i < b.N; i++ {
			k, _ := Normalize(tuples[i&(len(tuples)-1)])
			table[k]++
		}
	})

	b.Run("String", func(b *testing.B) {
		table := make(map[string]int)
		for i := 0; i < b.N; i++ {
			k, _ := Normalize(tuples[i&(len(tuples)-1)])
			table[k.String()]++
		}
	})
}
