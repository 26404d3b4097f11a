// Package loader 负责策略参数 profile 的加载与热更新。
// profile 文件独立于主配置，研究员调参后无需重启服务，
// 下一次回测自动使用新参数。
package loader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"huice/internal/logger"
	"huice/internal/strategy"
)

// ChangeListener 在 profile 变更后收到一份新快照。
type ChangeListener func(strategy.Profiles)

// ProfileLoader 读取策略 profile 并监听文件变更。
type ProfileLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  strategy.Profiles
	listeners []ChangeListener
}

// NewProfileLoader 读取配置文件并开始监听 FS 事件。
func NewProfileLoader(path string) (*ProfileLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	l := &ProfileLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("profile reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	v.WatchConfig()
	return l, nil
}

func (l *ProfileLoader) reload() error {
	if err := l.v.ReadInConfig(); err != nil {
		return err
	}
	var profiles strategy.Profiles
	if err := l.v.Unmarshal(&profiles, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return fmt.Errorf("parse profiles failed: %w", err)
	}
	l.mu.Lock()
	l.snapshot = profiles
	l.mu.Unlock()
	logger.Infof("[profiles] 已加载策略参数 (%s)，缺省形态=%s", l.path, profiles.DefaultPattern())
	return nil
}

// Snapshot 返回当前策略参数快照。
func (l *ProfileLoader) Snapshot() strategy.Profiles {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Subscribe 注册监听器，并立即推送一次当前快照。
func (l *ProfileLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := l.snapshot
	l.mu.Unlock()
	fn(snap)
}

func (l *ProfileLoader) notify() {
	l.mu.RLock()
	listeners := append([]ChangeListener(nil), l.listeners...)
	snap := l.snapshot
	l.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
