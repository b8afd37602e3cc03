package source

// CountLoop returns the reference counting program:
//
//	0: LOAD  r0, 0
//	1: LOAD  r1, 1
//	2: LOAD  r2, n
//	3: ADD   r0, r0, r1
//	4: JMPNE r0, r2, 3
//	5: PRINT r0         (only when print is set)
//	6: RET
//
// The loop body runs before the first comparison, so the branch is taken
// n-1 times for n > 0. For n = 0 r0 wraps around through every uint32
// value before it matches again.
func CountLoop(n uint32, print bool) []Word {
	words := []Word{
		// Init
		Load(0, 0),
		Load(1, 1),
		Load(2, n),
		// Loop
		Add(0, 0, 1),
		JmpNE(0, 2, 3),
	}
	// Finish
	if print {
		words = append(words, Print(0))
	}
	return append(words, Ret())
}

// Straight returns a branch-free program of count PRINT instructions
// followed by RET, printing r0 each time.
func Straight(count int) []Word {
	words := make([]Word, 0, count+1)
	for i := 0; i < count; i++ {
		words = append(words, Print(0))
	}
	return append(words, Ret())
}
