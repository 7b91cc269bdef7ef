// Package bingo はビンゴカードの生成と判定を提供する。
package bingo

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Size はビンゴカードの1辺のマス数。
const Size = 3

// MinTopics はカードを生成するのに必要なトピック数。
const MinTopics = Size * Size

var (
	// ErrNotEnoughTopics はトピックがMinTopics未満の場合に返される。
	ErrNotEnoughTopics = errors.New("not enough topics to build a bingo card")
	// ErrCellOutOfRange はマスの位置がカード外の場合に返される。
	ErrCellOutOfRange = errors.New("cell is out of range")
)

// Cell はカードの1マス。
type Cell struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Grid は3×3のビンゴカード。行優先で保持する。
type Grid [][]Cell

// Shuffler はインデックス列を並べ替える。テストで決定的な順序を差し込むために使う。
type Shuffler func(n int, swap func(i, j int))

// NewGrid はtopicsから重複しない9つの位置を選んでカードを生成する。
// shuffleがnilの場合はmath/rand/v2のShuffle（Fisher–Yates）を使う。
// topicsは変更しない。
func NewGrid(topics []string, shuffle Shuffler) (Grid, error) {
	if len(topics) < MinTopics {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughTopics, len(topics), MinTopics)
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	idx := make([]int, len(topics))
	for i := range idx {
		idx[i] = i
	}
	shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	g := make(Grid, Size)
	for r := 0; r < Size; r++ {
		g[r] = make([]Cell, Size)
		for c := 0; c < Size; c++ {
			g[r][c] = Cell{Value: topics[idx[r*Size+c]]}
		}
	}
	return g, nil
}

// Valid はgが3×3の形をしているかを返す。
func (g Grid) Valid() bool {
	if len(g) != Size {
		return false
	}
	for _, row := range g {
		if len(row) != Size {
			return false
		}
	}
	return true
}

// Toggle はマスの選択状態を反転し、そのマスを含む行または列が揃ったかを返す。
func (g Grid) Toggle(row, col int) (bool, error) {
	if !g.Valid() || row < 0 || row >= Size || col < 0 || col >= Size {
		return false, fmt.Errorf("%w: (%d, %d)", ErrCellOutOfRange, row, col)
	}
	g[row][col].Selected = !g[row][col].Selected
	return g.RowComplete(row) || g.ColumnComplete(col), nil
}

// RowComplete は行のマスがすべて選択されているかを返す。
func (g Grid) RowComplete(row int) bool {
	for _, c := range g[row] {
		if !c.Selected {
			return false
		}
	}
	return true
}

// ColumnComplete は列のマスがすべて選択されているかを返す。
func (g Grid) ColumnComplete(col int) bool {
	for _, row := range g {
		if !row[col].Selected {
			return false
		}
	}
	return true
}

// Clone はgの深いコピーを返す。
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}
