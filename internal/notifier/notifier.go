package notifier

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"market-mirror/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendAlert(alert *types.AlertEvent) error
	SendBatchAlerts(alerts []*types.AlertEvent) error
}

// New 按配置选择通知渠道：钉钉优先，其次PushPlus，否则控制台
func New(cfg *types.Config) Interface {
	if cfg.DingTalk.WebhookURL != "" {
		return NewDingTalkNotifier(cfg.DingTalk.WebhookURL, cfg.DingTalk.Secret)
	}
	if cfg.PushPlus.UserToken != "" {
		return NewPushPlusNotifier(cfg.PushPlus.UserToken, cfg.PushPlus.To)
	}
	return NewConsoleNotifier()
}

// formatPrice 价格保留两位小数
func formatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// formatChange 带符号的涨跌幅
func formatChange(changePercent float64) string {
	return decimal.NewFromFloat(changePercent).StringFixed(2) + "%"
}

func signedChange(changePercent float64) string {
	if changePercent > 0 {
		return "+" + formatChange(changePercent)
	}
	return formatChange(changePercent)
}

// splitByDirection 分离上涨和下跌的预警，均按幅度从大到小排序
func splitByDirection(alerts []*types.AlertEvent) (up, down []*types.AlertEvent) {
	for _, alert := range alerts {
		if alert.ChangePercent > 0 {
			up = append(up, alert)
		} else {
			down = append(down, alert)
		}
	}
	sort.SliceStable(up, func(i, j int) bool { return up[i].ChangePercent > up[j].ChangePercent })
	sort.SliceStable(down, func(i, j int) bool { return down[i].ChangePercent < down[j].ChangePercent })
	return up, down
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	padding := totalWidth - utf8.RuneCountInString(content) - 4
	if padding < 0 {
		padding = 0
	}
	return padding
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	out io.Writer
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{out: os.Stdout}
}

func (cn *ConsoleNotifier) SendAlert(alert *types.AlertEvent) error {
	return cn.SendBatchAlerts([]*types.AlertEvent{alert})
}

func (cn *ConsoleNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	const width = 72
	var b strings.Builder
	line := func(content string) {
		fmt.Fprintf(&b, "║ %s%s ║\n", content, strings.Repeat(" ", safePadding(content, width)))
	}

	up, down := splitByDirection(alerts)
	b.WriteString("\n╔" + strings.Repeat("═", width) + "╗\n")
	line(fmt.Sprintf("🚨 价格预警触发！- %d个资产", len(alerts)))
	line(fmt.Sprintf("📈 上涨: %d个  📉 下跌: %d个", len(up), len(down)))
	for i, alert := range append(up, down...) {
		arrow := "📈"
		if alert.ChangePercent < 0 {
			arrow = "📉"
		}
		line(fmt.Sprintf("  %d. %s %s: $%s (%s)", i+1, arrow, alert.Symbol, formatPrice(alert.Price), signedChange(alert.ChangePercent)))
	}
	line(fmt.Sprintf("预警时间: %s", alerts[0].CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString("╚" + strings.Repeat("═", width) + "╝\n")

	_, err := io.WriteString(cn.out, b.String())
	return err
}
