package mode

// Mode 定义了服务器运行模式
type Mode string

const (
	// Dev 开发模式
	Dev Mode = "dev"
	// Prod 生产模式
	Prod Mode = "prod"
)

var current = Dev

// Set 设置当前模式，在main中由构建参数决定
func Set(m Mode) {
	current = m
}

// Get 返回当前模式，默认为开发模式
func Get() Mode {
	return current
}
