package conf

import (
	"fmt"
	"image"
	"time"

	"landlord-lens/vision"
	"landlord-lens/watcher"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 叠加层进程的全部配置，来自一个 YAML 文件。
// 键名沿用牌桌布局工具导出的命名。
type Config struct {
	Display     int    `mapstructure:"display"`
	TemplateDir string `mapstructure:"templateDir"`
	ListenAddr  string `mapstructure:"listenAddr"`
	MetricPort  int    `mapstructure:"metricPort"` // 0 关闭监控端点
	LedgerPath  string `mapstructure:"ledgerPath"` // 空串关闭台账

	LogConf LogConf `mapstructure:"log"`

	ScreenshotIntervalMs int `mapstructure:"screenshotIntervalMs"`
	GameStartIntervalMs  int `mapstructure:"gameStartIntervalMs"`
	GuiUpdateIntervalMs  int `mapstructure:"guiUpdateIntervalMs"`

	Background BackgroundConf `mapstructure:"background"`
	Thresholds ThresholdConf  `mapstructure:"thresholds"`
	Regions    RegionConf     `mapstructure:"regions"`

	v *viper.Viper
}

type LogConf struct {
	Level string `mapstructure:"level"`
}

// BackgroundConf 出牌区背景灰度基准与容差。
type BackgroundConf struct {
	Gray      uint8 `mapstructure:"gray"`
	Tolerance uint8 `mapstructure:"tolerance"`
}

type ThresholdConf struct {
	Pass     float32 `mapstructure:"pass"`
	Wait     float32 `mapstructure:"wait"`
	Landlord float32 `mapstructure:"landlord"`
	Card     float32 `mapstructure:"card"`
	EndGame  float32 `mapstructure:"endGame"`
}

// RegionConf 各监控区域的屏幕矩形，每个是 [x1, y1, x2, y2]。
type RegionConf struct {
	PlayLeft     []int `mapstructure:"playLeft"`
	PlayMiddle   []int `mapstructure:"playMiddle"`
	PlayRight    []int `mapstructure:"playRight"`
	MarkerLeft   []int `mapstructure:"markerLeft"`
	MarkerMiddle []int `mapstructure:"markerMiddle"`
	MarkerRight  []int `mapstructure:"markerRight"`
	MyCards      []int `mapstructure:"myCards"`
	BottomCards  []int `mapstructure:"bottomCards"`
}

func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetDefault("display", 0)
	v.SetDefault("templateDir", "templates")
	v.SetDefault("listenAddr", ":8420")
	v.SetDefault("log.level", "info")
	v.SetDefault("screenshotIntervalMs", 200)
	v.SetDefault("gameStartIntervalMs", 1000)
	v.SetDefault("guiUpdateIntervalMs", 500)
	v.SetDefault("background.gray", 118)
	v.SetDefault("background.tolerance", 30)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.v = v
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TemplateDir == "" {
		return fmt.Errorf("templateDir is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr is required")
	}
	if c.ScreenshotIntervalMs <= 0 || c.GameStartIntervalMs <= 0 || c.GuiUpdateIntervalMs <= 0 {
		return fmt.Errorf("all intervals must be positive")
	}
	if err := c.Thresholds.validate(); err != nil {
		return err
	}
	rects := map[string][]int{
		"playLeft":     c.Regions.PlayLeft,
		"playMiddle":   c.Regions.PlayMiddle,
		"playRight":    c.Regions.PlayRight,
		"markerLeft":   c.Regions.MarkerLeft,
		"markerMiddle": c.Regions.MarkerMiddle,
		"markerRight":  c.Regions.MarkerRight,
		"myCards":      c.Regions.MyCards,
		"bottomCards":  c.Regions.BottomCards,
	}
	for name, r := range rects {
		if _, err := toRect(r); err != nil {
			return fmt.Errorf("regions.%s: %w", name, err)
		}
	}
	return nil
}

func (t ThresholdConf) validate() error {
	vals := map[string]float32{
		"pass":     t.Pass,
		"wait":     t.Wait,
		"landlord": t.Landlord,
		"card":     t.Card,
		"endGame":  t.EndGame,
	}
	for name, v := range vals {
		if v <= 0 || v > 1 {
			return fmt.Errorf("thresholds.%s must be in (0, 1], got %v", name, v)
		}
	}
	return nil
}

func toRect(r []int) (image.Rectangle, error) {
	if len(r) != 4 {
		return image.Rectangle{}, fmt.Errorf("want [x1, y1, x2, y2], got %v", r)
	}
	rect := image.Rect(r[0], r[1], r[2], r[3])
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("rectangle %v is empty", r)
	}
	return rect, nil
}

func mustRect(r []int) image.Rectangle {
	rect, err := toRect(r)
	if err != nil {
		panic(err) // validate 已把关
	}
	return rect
}

// Layout 把区域配置转成视觉层的布局。只应在 validate 通过后调用。
func (c *Config) Layout() vision.Layout {
	return vision.Layout{
		PlayLeft:     mustRect(c.Regions.PlayLeft),
		PlayMiddle:   mustRect(c.Regions.PlayMiddle),
		PlayRight:    mustRect(c.Regions.PlayRight),
		MarkerLeft:   mustRect(c.Regions.MarkerLeft),
		MarkerMiddle: mustRect(c.Regions.MarkerMiddle),
		MarkerRight:  mustRect(c.Regions.MarkerRight),
		MyCards:      mustRect(c.Regions.MyCards),
		BottomCards:  mustRect(c.Regions.BottomCards),
	}
}

func (c *Config) VisionThresholds() vision.Thresholds {
	return vision.Thresholds{
		Pass:     c.Thresholds.Pass,
		Wait:     c.Thresholds.Wait,
		Landlord: c.Thresholds.Landlord,
		Card:     c.Thresholds.Card,
		EndGame:  c.Thresholds.EndGame,
	}
}

func (c *Config) WatcherConfig() watcher.Config {
	return watcher.Config{
		ScreenshotInterval: time.Duration(c.ScreenshotIntervalMs) * time.Millisecond,
		GameStartInterval:  time.Duration(c.GameStartIntervalMs) * time.Millisecond,
	}
}

func (c *Config) GuiUpdateInterval() time.Duration {
	return time.Duration(c.GuiUpdateIntervalMs) * time.Millisecond
}

// WatchThresholds 监听配置文件变更，阈值合法时回调新值。
// 其余配置项（区域、端口等）不做热更新，改了要重启。
func (c *Config) WatchThresholds(onChange func(vision.Thresholds)) {
	c.v.OnConfigChange(func(in fsnotify.Event) {
		var next ThresholdConf
		if err := c.v.UnmarshalKey("thresholds", &next); err != nil {
			return
		}
		if err := next.validate(); err != nil {
			return
		}
		c.Thresholds = next
		onChange(c.VisionThresholds())
	})
	c.v.WatchConfig()
}
