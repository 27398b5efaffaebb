package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iotdetect/detection"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	Warning  AlertLevel = "warning"
	Critical AlertLevel = "critical"
)

// Alert 告警结构
type Alert struct {
	ID         string     `json:"id"`
	Level      AlertLevel `json:"level"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Category   string     `json:"category,omitempty"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
	Timestamp  time.Time  `json:"timestamp"`
}

// AlertChannel 告警渠道配置。Type 为 webhook、feishu 或 dingding
type AlertChannel struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
	URL  string `yaml:"url" json:"url"`
}

// RateLimit 限流配置，作用于每个渠道
type RateLimit struct {
	MaxPerHour int           `yaml:"max_per_hour"`
	Cooldown   time.Duration `yaml:"cooldown"`
}

// AlertStats 告警统计
type AlertStats struct {
	Raised      int64            `json:"raised"`
	Sent        int64            `json:"sent"`
	RateLimited int64            `json:"rate_limited"`
	Failed      int64            `json:"failed"`
	ByChannel   map[string]int64 `json:"by_channel"`
	LastAlert   time.Time        `json:"last_alert"`
}

// rateTracker 限流追踪器
type rateTracker struct {
	hourCount int
	hourReset time.Time
	lastSent  time.Time
}

// AlertSystem 在检测到攻击时向配置的渠道发送告警
type AlertSystem struct {
	mu         sync.Mutex
	channels   []AlertChannel
	limit      RateLimit
	httpClient *http.Client
	rateLimits map[string]*rateTracker
	stats      AlertStats
	logger     *zap.Logger
	now        func() time.Time

	queue chan *Alert
	wg    sync.WaitGroup
}

var ErrUnknownChannel = errors.New("unknown alert channel type")

// NewAlertSystem 创建告警系统
func NewAlertSystem(channels []AlertChannel, limit RateLimit, logger *zap.Logger) (*AlertSystem, error) {
	for _, c := range channels {
		switch c.Type {
		case "webhook", "feishu", "dingding":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, c.Type)
		}
		if c.URL == "" {
			return nil, fmt.Errorf("alert channel %q has no url", c.Name)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertSystem{
		channels:   channels,
		limit:      limit,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		rateLimits: make(map[string]*rateTracker),
		stats:      AlertStats{ByChannel: make(map[string]int64)},
		logger:     logger,
		now:        time.Now,
		queue:      make(chan *Alert, 64),
	}, nil
}

// Start 启动发送协程
func (a *AlertSystem) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for alert := range a.queue {
			if err := a.SendAlert(context.Background(), alert); err != nil {
				a.logger.Warn("alert delivery failed", zap.String("alert_id", alert.ID), zap.Error(err))
			}
		}
	}()
}

// Stop 发送完队列中的告警后返回
func (a *AlertSystem) Stop() {
	close(a.queue)
	a.wg.Wait()
}

// Observe 实现 detection.Observer，只对检测到的攻击告警
func (a *AlertSystem) Observe(result detection.Result) {
	if !result.AttackDetected {
		return
	}
	alert := alertFor(result)
	select {
	case a.queue <- alert:
	default:
		a.logger.Warn("alert queue full, dropping alert", zap.String("alert_id", alert.ID))
	}
}

func (a *AlertSystem) ObserveError(mode, stage string, err error) {}

func alertFor(result detection.Result) *Alert {
	alert := &Alert{
		ID:         uuid.NewString(),
		Level:      Warning,
		Title:      result.Banner,
		Message:    "attack detected in submitted IoT flow",
		Confidence: result.Confidence,
		Source:     result.Mode + "/" + result.Stage,
		Timestamp:  result.Timestamp,
	}
	if result.Classified {
		alert.Level = Critical
		alert.Category = result.Category
		alert.Message = result.Label
	}
	return alert
}

// SendAlert 同步发送到所有未被限流的渠道
func (a *AlertSystem) SendAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is nil")
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = a.now()
	}

	a.mu.Lock()
	a.stats.Raised++
	a.stats.LastAlert = alert.Timestamp
	a.mu.Unlock()

	var errs []error
	for _, channel := range a.channels {
		if !a.checkRateLimit(channel.Name) {
			a.mu.Lock()
			a.stats.RateLimited++
			a.mu.Unlock()
			continue
		}
		if err := a.send(ctx, channel, alert); err != nil {
			a.mu.Lock()
			a.stats.Failed++
			a.mu.Unlock()
			errs = append(errs, fmt.Errorf("%s: %w", channel.Name, err))
			continue
		}
		a.mu.Lock()
		a.stats.Sent++
		a.stats.ByChannel[channel.Name]++
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}

// checkRateLimit 检查并占用一次发送额度
func (a *AlertSystem) checkRateLimit(channel string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	tracker, ok := a.rateLimits[channel]
	if !ok {
		tracker = &rateTracker{hourReset: now.Truncate(time.Hour)}
		a.rateLimits[channel] = tracker
	}

	// 重置计数器
	if now.Sub(tracker.hourReset) >= time.Hour {
		tracker.hourCount = 0
		tracker.hourReset = now.Truncate(time.Hour)
	}
	if a.limit.MaxPerHour > 0 && tracker.hourCount >= a.limit.MaxPerHour {
		return false
	}
	// 检查冷却时间
	if a.limit.Cooldown > 0 && !tracker.lastSent.IsZero() && now.Sub(tracker.lastSent) < a.limit.Cooldown {
		return false
	}

	tracker.hourCount++
	tracker.lastSent = now
	return true
}

func (a *AlertSystem) send(ctx context.Context, channel AlertChannel, alert *Alert) error {
	var payload interface{}
	switch channel.Type {
	case "feishu":
		payload = map[string]interface{}{
			"msg_type": "text",
			"content":  map[string]string{"text": alertText(alert)},
		}
	case "dingding":
		payload = map[string]interface{}{
			"msgtype": "text",
			"text":    map[string]string{"content": alertText(alert)},
		}
	default:
		payload = alert
	}
	return a.sendWebhookRequest(ctx, channel.URL, payload)
}

func alertText(alert *Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 %s\n\n", alert.Title)
	fmt.Fprintf(&b, "Level: %s\n", alert.Level)
	fmt.Fprintf(&b, "Detail: %s\n", alert.Message)
	fmt.Fprintf(&b, "Confidence: %.2f\n", alert.Confidence)
	fmt.Fprintf(&b, "Time: %s", alert.Timestamp.Format("2006-01-02 15:04:05"))
	return b.String()
}

// sendWebhookRequest 发送Webhook请求
func (a *AlertSystem) sendWebhookRequest(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Stats 返回告警统计快照
func (a *AlertSystem) Stats() AlertStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := a.stats
	stats.ByChannel = make(map[string]int64, len(a.stats.ByChannel))
	for k, v := range a.stats.ByChannel {
		stats.ByChannel[k] = v
	}
	return stats
}
