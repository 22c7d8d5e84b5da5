package recall

// similarity computes a sequence-similarity ratio between two strings:
// 2*M/T where M is the total length of matching blocks and T the combined
// length. Equivalent strings score 1, disjoint strings 0.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	matched := 0

	// Map each rune of b to its positions for the longest-match scan.
	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(ra), 0, len(rb)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		besti, bestj, bestsize := longestMatch(ra, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if bestsize == 0 {
			continue
		}
		matched += bestsize
		if s.alo < besti && s.blo < bestj {
			queue = append(queue, span{s.alo, besti, s.blo, bestj})
		}
		if besti+bestsize < s.ahi && bestj+bestsize < s.bhi {
			queue = append(queue, span{besti + bestsize, s.ahi, bestj + bestsize, s.bhi})
		}
	}

	return 2 * float64(matched) / float64(total)
}

// longestMatch finds the longest block of a[alo:ahi] that also occurs in
// b[blo:bhi], preferring the earliest such block.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestsize
}
