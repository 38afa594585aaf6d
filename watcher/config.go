package watcher

import (
	"fmt"
	"time"
)

type Config struct {
	// ScreenshotInterval 对局中每个轮询周期之间的等待时长。
	ScreenshotInterval time.Duration

	// GameStartInterval 等待开局时两次地主标记检测之间的等待时长。
	GameStartInterval time.Duration
}

func (c Config) validate() error {
	if c.ScreenshotInterval <= 0 {
		return fmt.Errorf("ScreenshotInterval must be > 0")
	}
	if c.GameStartInterval <= 0 {
		return fmt.Errorf("GameStartInterval must be > 0")
	}
	return nil
}
