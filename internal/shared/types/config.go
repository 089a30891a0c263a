package types

import (
	"net"
	"strconv"
)

// ServerConf 包含 HTTP/WebSocket 监听相关的配置
type ServerConf struct {
	Host      string `ini:"host"`
	Port      int    `ini:"port"`
	Localhost bool   `ini:"localhost"` // true 时只监听 localhost，否则监听 0.0.0.0
}

// RoomConf 包含聊天室的容量限制
type RoomConf struct {
	MaxClients int `ini:"max_clients"`
	MaxWaiting int `ini:"max_waiting"` // 房间只有一个人时最多缓存的消息数
}

// SocketConf 包含单个 WebSocket 连接的读写参数
type SocketConf struct {
	ReadLimit        int64 `ini:"read_limit"`
	PongWaitSeconds  int   `ini:"pong_wait_seconds"`
	WriteWaitSeconds int   `ini:"write_wait_seconds"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 signaling server 的统一配置结构体
type Config struct {
	ServerConf `ini:"server"`
	RoomConf   `ini:"room"`
	SocketConf `ini:"socket"`
	LogConf    `ini:"log"`
}

// ListenAddr returns host:port honoring the localhost switch.
func (c *Config) ListenAddr() string {
	host := c.ServerConf.Host
	if c.ServerConf.Localhost {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.ServerConf.Port))
}
