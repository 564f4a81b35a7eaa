package feed

import (
	"strings"
	"sync"
)

// The offsets table is static game data, not part of any fetched feed: for
// each island type it places the island's town slots on the 125x125 sub-grid
// of a world tile. The table below covers the common town island types;
// callers with a fuller table can pass their own to Parse.
var defaultOffsets = sync.OnceValue(func() map[OffsetKey]Offset {
	out, err := ParseOffsets(strings.TrimSpace(defaultOffsetsData))
	if err != nil {
		// Static data, exercised by tests; a parse failure here is a
		// programming error.
		panic(err)
	}
	return out
})

// DefaultOffsets returns the built-in offsets table. The result is shared;
// callers must not modify it.
func DefaultOffsets() map[OffsetKey]Offset {
	return defaultOffsets()
}

const defaultOffsetsData = `
1,21,28,1
1,51,19,2
1,81,26,3
1,101,40,4
1,111,64,5
1,99,88,6
1,78,102,7
1,52,108,8
1,28,98,9
1,14,74,10
1,18,50,11
1,38,38,12
1,62,34,13
1,84,46,14
1,92,68,15
1,76,86,16
1,52,90,17
1,32,80,18
1,26,60,19
1,48,56,20
2,25,22,1
2,55,14,2
2,86,20,3
2,106,38,4
2,113,62,5
2,102,86,6
2,80,100,7
2,54,106,8
2,30,96,9
2,16,72,10
2,20,48,11
2,40,36,12
2,64,32,13
2,86,44,14
2,94,66,15
2,78,84,16
2,54,88,17
2,34,78,18
2,28,58,19
2,50,54,20
3,23,30,1
3,49,21,2
3,79,24,3
3,99,38,4
3,109,62,5
3,97,86,6
3,76,100,7
3,50,106,8
3,26,96,9
3,12,72,10
3,16,48,11
3,36,36,12
3,60,32,13
3,82,44,14
3,90,66,15
3,74,84,16
3,50,88,17
3,30,78,18
3,24,58,19
3,46,54,20
4,27,26,1
4,57,17,2
4,87,24,3
4,107,38,4
4,115,62,5
4,103,86,6
4,82,100,7
4,56,106,8
4,32,96,9
4,18,72,10
4,22,48,11
4,42,36,12
4,66,32,13
4,88,44,14
4,96,66,15
4,80,84,16
4,56,88,17
4,36,78,18
4,30,58,19
4,52,54,20
5,24,24,1
5,54,16,2
5,84,22,3
5,104,36,4
5,112,60,5
5,100,84,6
5,79,98,7
5,53,104,8
5,29,94,9
5,15,70,10
5,19,46,11
5,39,34,12
5,63,30,13
5,85,42,14
5,93,64,15
5,77,82,16
5,53,86,17
5,33,76,18
5,27,56,19
5,49,52,20
6,22,32,1
6,48,23,2
6,78,26,3
6,98,40,4
6,108,64,5
6,96,88,6
6,75,102,7
6,49,108,8
6,25,98,9
6,11,74,10
6,15,50,11
6,35,38,12
6,59,34,13
6,81,46,14
6,89,68,15
6,73,86,16
6,49,90,17
6,29,80,18
6,23,60,19
6,45,56,20
7,26,28,1
7,56,19,2
7,86,26,3
7,106,40,4
7,114,64,5
7,102,88,6
7,81,102,7
7,55,108,8
7,31,98,9
7,17,74,10
7,21,50,11
7,41,38,12
7,65,34,13
7,87,46,14
7,95,68,15
7,79,86,16
7,55,90,17
7,35,80,18
7,29,60,19
7,51,56,20
8,20,26,1
8,50,17,2
8,80,24,3
8,100,38,4
8,110,62,5
8,98,86,6
8,77,100,7
8,51,106,8
8,27,96,9
8,13,72,10
8,17,48,11
8,37,36,12
8,61,32,13
8,83,44,14
8,91,66,15
8,75,84,16
8,51,88,17
8,31,78,18
8,25,58,19
8,47,54,20
9,28,30,1
9,58,21,2
9,88,28,3
9,108,42,4
9,116,66,5
9,104,90,6
9,83,104,7
9,57,110,8
9,33,100,9
9,19,76,10
9,23,52,11
9,43,40,12
9,67,36,13
9,89,48,14
9,97,70,15
9,81,88,16
9,57,92,17
9,37,82,18
9,31,62,19
9,53,58,20
10,19,24,1
10,45,15,2
10,75,22,3
10,95,36,4
10,105,60,5
10,93,84,6
10,72,98,7
10,46,104,8
10,22,94,9
10,8,70,10
10,12,46,11
10,32,34,12
10,56,30,13
10,78,42,14
10,86,64,15
10,70,82,16
10,46,86,17
10,26,76,18
10,20,56,19
10,42,52,20
`
