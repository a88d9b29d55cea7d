package grid

import "math"

// Position 表示网格上的整数坐标
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Spawn 是新连接未指定位置时的出生点
var Spawn = Position{X: 15, Y: 12}

// Bounds 表示可行走区域，四个边界都是闭区间
type Bounds struct {
	MinX int `json:"minX"`
	MinY int `json:"minY"`
	MaxX int `json:"maxX"`
	MaxY int `json:"maxY"`
}

// Walkable 根据网格的宽高计算可行走区域
// 最外一圈是墙，不可站立
func Walkable(width, height int) Bounds {
	return Bounds{MinX: 1, MinY: 1, MaxX: width - 2, MaxY: height - 2}
}

// Contains 判断坐标是否在区域内
func (b Bounds) Contains(p Position) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Clamp 把坐标限制到区域内
func (b Bounds) Clamp(p Position) Position {
	return Position{X: clamp(p.X, b.MinX, b.MaxX), Y: clamp(p.Y, b.MinY, b.MaxY)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DistanceSquared 返回两点欧氏距离的平方
// 所有客户端都用整数比较半径，避免浮点误差导致双方判断不一致
func DistanceSquared(a, b Position) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Distance 返回两点之间的欧氏距离
func Distance(a, b Position) float64 {
	return math.Sqrt(float64(DistanceSquared(a, b)))
}

// Within 判断两点距离是否不超过 radius（含边界）
func Within(a, b Position, radius int) bool {
	return DistanceSquared(a, b) <= radius*radius
}
