//go:build go1.18

package cache

import "testing"

// Fuzz arbitrary operation sequences. Each byte pair encodes one operation
// and its frame number; the invariants must hold after every step.
func FuzzCache_Ops(f *testing.F) {
	f.Add([]byte{}, uint8(2), uint8(2))
	f.Add([]byte{0, 1, 0, 2, 0, 3, 0, 4, 0, 5, 1, 1, 1, 3}, uint8(2), uint8(2))
	f.Add([]byte{0, 1, 0, 2, 0, 3, 1, 1, 0, 4, 2, 3, 3, 0}, uint8(1), uint8(0))
	f.Add([]byte{4, 4, 0, 9, 0, 8, 5, 1, 6, 2, 1, 9}, uint8(3), uint8(5))

	f.Fuzz(func(t *testing.T, ops []byte, maxLive, maxHistory uint8) {
		// Keep the structure small so sequences actually collide.
		const limit = 1 << 10
		if len(ops) > limit {
			ops = ops[:limit]
		}

		c := New[string](Options[string]{
			MaxLive:    int(maxLive % 16),
			MaxHistory: int(maxHistory%16) - 1, // -1 means no history
		})

		for i := 0; i+1 < len(ops); i += 2 {
			n := int(ops[i+1] % 32)
			switch ops[i] % 7 {
			case 0:
				c.Insert(n, "f")
			case 1:
				fr, o := c.Lookup(n)
				if (o == Hit) != (fr == "f") {
					t.Fatalf("lookup %d: outcome %v with frame %q", n, o, fr)
				}
			case 2:
				c.Remove(n)
			case 3:
				c.Trim(n%8, n%5)
			case 4:
				c.SetMaxLive(n % 16)
			case 5:
				c.SetMaxHistory(n % 16)
			case 6:
				c.Clear()
			}
			checkInvariants(t, c)
		}
	})
}
