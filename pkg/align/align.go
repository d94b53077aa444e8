// Package align provides exact edit-distance alignment between two
// sequences, returning an explicit operation path rather than just a
// score. The global mode aligns both sequences end to end; the infix
// mode finds the best placement of the query anywhere inside the target.
package align

import "github.com/pkg/errors"

// Op is one step of an alignment path, read query-first: OpInsertQuery
// marks a base present only in the query, OpInsertTarget a base present
// only in the target.
type Op uint8

const (
	OpMatch Op = iota
	OpInsertQuery
	OpInsertTarget
	OpMismatch
)

// Mode selects how sequence ends are charged.
type Mode int

const (
	// ModeGlobal charges gaps at both ends of both sequences.
	ModeGlobal Mode = iota
	// ModeInfix leaves gaps at the target ends free, so the whole query
	// is located inside the target.
	ModeInfix
)

// Result is a completed alignment.
type Result struct {
	Distance int
	Path     []Op
	// TargetStart/TargetEnd delimit the half-open target window the
	// query aligned against. For ModeGlobal this is the whole target.
	TargetStart int
	TargetEnd   int
}

// ErrNoAlignment is returned when no valid path satisfies the request.
var ErrNoAlignment = errors.New("align: no valid alignment path")

// Align computes the minimum edit-distance alignment of query against
// target under the given mode. Empty inputs short-circuit to
// ErrNoAlignment rather than degenerate paths.
func Align(query, target string, mode Mode) (Result, error) {
	if len(query) == 0 || len(target) == 0 {
		return Result{}, ErrNoAlignment
	}
	switch mode {
	case ModeGlobal:
		return global(query, target), nil
	case ModeInfix:
		return infix(query, target), nil
	default:
		return Result{}, errors.Errorf("align: unknown mode %d", mode)
	}
}

// global runs a full Needleman-Wunsch DP with unit costs and walks the
// matrix back to recover the path.
func global(query, target string) Result {
	n, m := len(query), len(target)
	// dp is (n+1) x (m+1), row-major.
	width := m + 1
	dp := make([]int, (n+1)*width)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		dp[i*width] = i
		for j := 1; j <= m; j++ {
			sub := dp[(i-1)*width+j-1]
			if query[i-1] != target[j-1] {
				sub++
			}
			ins := dp[i*width+j-1] + 1
			del := dp[(i-1)*width+j] + 1
			best := sub
			if ins < best {
				best = ins
			}
			if del < best {
				best = del
			}
			dp[i*width+j] = best
		}
	}

	path := traceback(dp, width, query, target, n, m)
	return Result{
		Distance:    dp[n*width+m],
		Path:        path,
		TargetStart: 0,
		TargetEnd:   m,
	}
}

// infix is the HW task: the first DP row is zero and the end column is
// chosen by minimum score, so target overhangs cost nothing.
func infix(query, target string) Result {
	n, m := len(query), len(target)
	width := m + 1
	dp := make([]int, (n+1)*width)
	// dp[0][j] = 0: the query may start anywhere in the target.
	for i := 1; i <= n; i++ {
		dp[i*width] = i
		for j := 1; j <= m; j++ {
			sub := dp[(i-1)*width+j-1]
			if query[i-1] != target[j-1] {
				sub++
			}
			ins := dp[i*width+j-1] + 1
			del := dp[(i-1)*width+j] + 1
			best := sub
			if ins < best {
				best = ins
			}
			if del < best {
				best = del
			}
			dp[i*width+j] = best
		}
	}

	endJ := 0
	for j := 1; j <= m; j++ {
		if dp[n*width+j] < dp[n*width+endJ] {
			endJ = j
		}
	}

	// Walk back from (n, endJ); row 0 entries are free starts.
	path := traceback(dp, width, query, target, n, endJ)
	startJ := endJ
	for _, op := range path {
		if op != OpInsertQuery {
			startJ--
		}
	}
	return Result{
		Distance:    dp[n*width+endJ],
		Path:        path,
		TargetStart: startJ,
		TargetEnd:   endJ,
	}
}

func traceback(dp []int, width int, query, target string, i, j int) []Op {
	rev := make([]Op, 0, i+j)
	for i > 0 || j > 0 {
		cur := dp[i*width+j]
		if i > 0 && j > 0 {
			sub := dp[(i-1)*width+j-1]
			cost := 0
			if query[i-1] != target[j-1] {
				cost = 1
			}
			if cur == sub+cost {
				if cost == 0 {
					rev = append(rev, OpMatch)
				} else {
					rev = append(rev, OpMismatch)
				}
				i--
				j--
				continue
			}
		}
		if i > 0 && cur == dp[(i-1)*width+j]+1 {
			rev = append(rev, OpInsertQuery)
			i--
			continue
		}
		if j > 0 && cur == dp[i*width+j-1]+1 {
			rev = append(rev, OpInsertTarget)
			j--
			continue
		}
		// Free start row of the infix task.
		break
	}
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}
