package header

import "github.com/chainweb-go/chainweb/rlp"

// Encode produces the canonical byte representation of a header: the RLP
// encoding of its exported fields in declaration order, generated
// reflectively by the rlp package rather than a hand-written per-field
// encoder, since every field of BlockHeader (uint64, uint32, [32]byte,
// string, []byte) is already one of the types rlp.EncodeToBytes understands
// natively. The unexported hash cache is skipped automatically.
func Encode(h *BlockHeader) ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// Decode parses the canonical encoding produced by Encode into h.
func Decode(data []byte, h *BlockHeader) error {
	return rlp.DecodeBytes(data, h)
}
