package tokens

import (
	"fmt"
	"math/big"
)

// alphabet omits 0, O, I and l
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var alphabetIndex = func() [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for i, c := range []byte(alphabet) {
		idx[c] = i
	}
	return idx
}()

func encodeBase58(input []byte) string {
	num := new(big.Int).SetBytes(input)
	base := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	// leading zero bytes map to the first symbol
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func decodeBase58(input string) ([]byte, error) {
	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(input); i++ {
		v := alphabetIndex[input[i]]
		if v < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", input[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(v)))
	}

	var zeros int
	for zeros < len(input) && input[zeros] == alphabet[0] {
		zeros++
	}
	return append(make([]byte, zeros), num.Bytes()...), nil
}
