package kernel

import (
	"encoding/binary"

	"github.com/vidcore/v3dlib/pkg/target"
	"github.com/vidcore/v3dlib/pkg/v3d"
	"github.com/vidcore/v3dlib/pkg/vc4"
)

// EncodeBytes encodes the target code into the platform's machine-code
// stream: vc4 emits 64-bit words low half first, v3d emits packed
// 64-bit words terminated by thrsw; nop; nop.
func (k *Kernel) EncodeBytes() ([]byte, error) {
	switch k.tgt {
	case target.VC4:
		words, err := vc4.Encode(k.Code)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4*len(words))
		for i, w := range words {
			binary.LittleEndian.PutUint32(buf[4*i:], w)
		}
		return buf, nil
	default:
		words, err := v3d.Encode(k.Code)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8*len(words))
		for i, w := range words {
			binary.LittleEndian.PutUint64(buf[8*i:], w)
		}
		return buf, nil
	}
}
