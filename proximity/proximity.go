// Package proximity 计算本地视角下的“附近的人”。
//
// 每个客户端都基于同一份广播数据独立计算，所以距离函数和半径比较
// 必须在所有客户端上完全一致：这里只比较整数距离平方，半径边界是闭区间。
//
// 每次位置更新都会对房间内所有人重新计算，单个客户端是 O(n)，
// 整个房间是 O(n²)。房间人数变多时可以换成按格子分桶的索引。
package proximity

import (
	"sort"

	"github.com/AsterZephyr/voffice/grid"
	"github.com/rs/xid"
)

// DefaultRadius 是默认的邻近半径（网格单位）
const DefaultRadius = 3

// Peer 是参与计算的一个连接
type Peer struct {
	ID       xid.ID
	Position grid.Position
	Room     string
}

// Nearby 是半径内的一个连接
type Nearby struct {
	ID       xid.ID
	Distance float64
	distSq   int
}

// Result 是一次计算的结果
type Result struct {
	// Nearby 按距离升序排列，距离相同时按连接ID排序
	Nearby []Nearby
	// Nearest 是 Nearby 的第一个元素，没有时为nil
	Nearest *Nearby
	// EligibleSharers 是附近且正在共享屏幕的连接，顺序与 Nearby 一致
	EligibleSharers []xid.ID
}

// Compute 计算 self 的邻近集合
// sharers 是当前已知的共享者集合，可以为nil
func Compute(self Peer, peers []Peer, radius int, sharers map[xid.ID]bool) Result {
	result := Result{Nearby: []Nearby{}, EligibleSharers: []xid.ID{}}

	for _, peer := range peers {
		if peer.ID == self.ID || peer.Room != self.Room {
			continue
		}
		d := grid.DistanceSquared(self.Position, peer.Position)
		if d > radius*radius {
			continue
		}
		result.Nearby = append(result.Nearby, Nearby{
			ID:       peer.ID,
			Distance: grid.Distance(self.Position, peer.Position),
			distSq:   d,
		})
	}

	sort.Slice(result.Nearby, func(i, j int) bool {
		left := result.Nearby[i]
		right := result.Nearby[j]
		if left.distSq != right.distSq {
			return left.distSq < right.distSq
		}
		return left.ID.Compare(right.ID) < 0
	})

	if len(result.Nearby) > 0 {
		nearest := result.Nearby[0]
		result.Nearest = &nearest
	}

	for _, n := range result.Nearby {
		if sharers[n.ID] {
			result.EligibleSharers = append(result.EligibleSharers, n.ID)
		}
	}
	return result
}

// IsEligible 判断某个共享者是否在结果中
func (r Result) IsEligible(id xid.ID) bool {
	for _, s := range r.EligibleSharers {
		if s == id {
			return true
		}
	}
	return false
}
