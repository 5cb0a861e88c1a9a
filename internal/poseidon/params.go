package poseidon

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"
)

// Permutation shape: width-3 state, rate 2, full x^7 rounds.
const (
	stateWidth = 3
	spongeRate = 2
	numRounds  = 55
)

// paramSeed keys the deterministic expansion of round constants and the MDS
// matrix. Changing it changes every hash in the system.
const paramSeed = "minacore.ledger.poseidon.v1"

var (
	paramsOnce sync.Once

	// roundConstants[r][i] is the constant added to state cell i in round r.
	roundConstants [numRounds][stateWidth]fr.Element

	// mds is the 3x3 Cauchy mixing matrix.
	mds [stateWidth][stateWidth]fr.Element
)

// initParams expands the permutation parameters from the seed. The MDS matrix
// is a Cauchy matrix 1/(x_i + y_j) over disjoint sequences, so it is always
// invertible.
func initParams() {
	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, []byte(paramSeed))
	if err != nil {
		panic(err)
	}
	buf := make([]byte, 48)
	next := func() fr.Element {
		if _, err := xof.Read(buf); err != nil {
			panic(err)
		}
		var e fr.Element
		e.SetBytes(buf)
		return e
	}
	for r := 0; r < numRounds; r++ {
		for i := 0; i < stateWidth; i++ {
			roundConstants[r][i] = next()
		}
	}
	for i := 0; i < stateWidth; i++ {
		for j := 0; j < stateWidth; j++ {
			var x, y, s fr.Element
			x.SetUint64(uint64(i))
			y.SetUint64(uint64(stateWidth + j))
			s.Add(&x, &y)
			mds[i][j].Inverse(&s)
		}
	}
}

// sbox raises x to the 7th power in place.
func sbox(x *fr.Element) {
	var x2, x3, x6 fr.Element
	x2.Square(x)
	x3.Mul(&x2, x)
	x6.Square(&x3)
	x.Mul(&x6, x)
}

// permute runs the full-round Poseidon permutation over the state.
func permute(state *[stateWidth]fr.Element) {
	paramsOnce.Do(initParams)
	for r := 0; r < numRounds; r++ {
		for i := 0; i < stateWidth; i++ {
			state[i].Add(&state[i], &roundConstants[r][i])
			sbox(&state[i])
		}
		var mixed [stateWidth]fr.Element
		for i := 0; i < stateWidth; i++ {
			var acc, t fr.Element
			for j := 0; j < stateWidth; j++ {
				t.Mul(&mds[i][j], &state[j])
				acc.Add(&acc, &t)
			}
			mixed[i] = acc
		}
		*state = mixed
	}
}

var (
	tagMu     sync.RWMutex
	tagStates = make(map[string][stateWidth]fr.Element)
)

// initialState returns the sponge state fixed by a domain tag. States are
// derived once per tag and cached.
func initialState(tag string) [stateWidth]fr.Element {
	tagMu.RLock()
	s, ok := tagStates[tag]
	tagMu.RUnlock()
	if ok {
		return s
	}

	digest := blake2b.Sum256([]byte(tag))
	var t fr.Element
	t.SetBytes(digest[:])
	s = [stateWidth]fr.Element{t}
	permute(&s)

	tagMu.Lock()
	tagStates[tag] = s
	tagMu.Unlock()
	return s
}
