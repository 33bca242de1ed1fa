package vec

import (
	"math"
	"math/bits"
)

// Lane-wise operation semantics shared by the source interpreter and
// the target emulator, so the two cannot drift apart.

func map2(a, b Vec, f func(x, y Word) Word) Vec {
	var r Vec
	for i := range r {
		r[i] = f(a[i], b[i])
	}
	return r
}

func AddI(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return IntWord(x.I() + y.I()) }) }
func SubI(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return IntWord(x.I() - y.I()) }) }

// Mul24 is the QPU integer multiplier: the low 32 bits of the product
// of the operands' low 24 bits.
func Mul24(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		return Word(uint32(uint64(uint32(x)&0xffffff) * uint64(uint32(y)&0xffffff)))
	})
}

func MinI(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		if x.I() < y.I() {
			return x
		}
		return y
	})
}

func MaxI(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		if x.I() > y.I() {
			return x
		}
		return y
	})
}

// Shifts use the low five bits of the shift amount.
func Shl(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word { return Word(uint32(x) << (uint32(y) & 31)) })
}

func Shr(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word { return Word(uint32(x) >> (uint32(y) & 31)) })
}

func Asr(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word { return IntWord(x.I() >> (uint32(y) & 31)) })
}

func Ror(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		return Word(bits.RotateLeft32(uint32(x), -int(uint32(y)&31)))
	})
}

func And(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return x & y }) }
func Or(a, b Vec) Vec  { return map2(a, b, func(x, y Word) Word { return x | y }) }
func Xor(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return x ^ y }) }

func NotI(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = ^a[i]
	}
	return r
}

func Clz(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = IntWord(int32(bits.LeadingZeros32(uint32(a[i]))))
	}
	return r
}

func AddF(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return FloatWord(x.F() + y.F()) }) }
func SubF(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return FloatWord(x.F() - y.F()) }) }
func MulF(a, b Vec) Vec { return map2(a, b, func(x, y Word) Word { return FloatWord(x.F() * y.F()) }) }

func MinF(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		if x.F() < y.F() {
			return x
		}
		return y
	})
}

func MaxF(a, b Vec) Vec {
	return map2(a, b, func(x, y Word) Word {
		if x.F() > y.F() {
			return x
		}
		return y
	})
}

// ItoF and FtoI convert lane-wise; FtoI truncates toward zero.
func ItoF(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = FloatWord(float32(a[i].I()))
	}
	return r
}

func FtoI(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = IntWord(int32(a[i].F()))
	}
	return r
}

// SFU approximations, computed exactly.
func Recip(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = FloatWord(1 / a[i].F())
	}
	return r
}

func RecipSqrt(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = FloatWord(float32(1 / math.Sqrt(float64(a[i].F()))))
	}
	return r
}

func Exp2(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = FloatWord(float32(math.Exp2(float64(a[i].F()))))
	}
	return r
}

func Log2(a Vec) Vec {
	var r Vec
	for i := range r {
		r[i] = FloatWord(float32(math.Log2(float64(a[i].F()))))
	}
	return r
}

// CmpMaskI compares lane-wise and returns the lanes where the
// comparison holds. kind follows source.CmpKind ordering: EQ, NEQ,
// LT, LE, GT, GE. The semantics are the hardware's: each comparison
// is a flag test on a (wrapping) subtraction, with the operand order
// the lowerer uses — GT and LE subtract the other way round.
func CmpMaskI(a, b Vec, kind int) [NumLanes]bool {
	var m [NumLanes]bool
	for i := range m {
		x, y := a[i].I(), b[i].I()
		switch kind {
		case 0: // EQ: zero-set on a-b
			m[i] = x-y == 0
		case 1: // NEQ: zero-clear on a-b
			m[i] = x-y != 0
		case 2: // LT: negative-set on a-b
			m[i] = x-y < 0
		case 3: // LE: negative-clear on b-a
			m[i] = y-x >= 0
		case 4: // GT: negative-set on b-a
			m[i] = y-x < 0
		default: // GE: negative-clear on a-b
			m[i] = x-y >= 0
		}
	}
	return m
}

// CmpMaskF is CmpMaskI over float lanes: a flag test on the rounded
// lane-wise subtraction.
func CmpMaskF(a, b Vec, kind int) [NumLanes]bool {
	var m [NumLanes]bool
	for i := range m {
		x, y := a[i].F(), b[i].F()
		switch kind {
		case 0:
			m[i] = x-y == 0
		case 1:
			m[i] = x-y != 0
		case 2:
			m[i] = x-y < 0
		case 3:
			m[i] = y-x >= 0
		case 4:
			m[i] = y-x < 0
		default:
			m[i] = x-y >= 0
		}
	}
	return m
}
