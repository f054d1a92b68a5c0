package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

const pushPlusEndpoint = "http://www.pushplus.plus/send"

// PushPlusNotifier PushPlus微信通知器
type PushPlusNotifier struct {
	userToken  string
	to         string
	endpoint   string
	httpClient *http.Client
	fallback   Interface
}

type PushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type PushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func NewPushPlusNotifier(userToken, to string) Interface {
	// 如果没有配置user token，返回控制台通知器
	if userToken == "" {
		zap.L().Info("🔧 未配置PushPlus User Token，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置PushPlus通知服务", zap.String("to", to))
	return &PushPlusNotifier{
		userToken:  userToken,
		to:         to,
		endpoint:   pushPlusEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		fallback:   NewConsoleNotifier(),
	}
}

func (ppn *PushPlusNotifier) SendAlert(alert *types.AlertEvent) error {
	return ppn.SendBatchAlerts([]*types.AlertEvent{alert})
}

func (ppn *PushPlusNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	title := fmt.Sprintf("📊 行情预警 - %d个资产", len(alerts))
	if len(alerts) == 1 {
		title = fmt.Sprintf("📈 行情预警 - %s", alerts[0].Symbol)
	}

	if err := ppn.send(title, buildHTMLContent(alerts)); err != nil {
		zap.L().Warn("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		return ppn.fallback.SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ PushPlus通知已发送", zap.Int("count", len(alerts)))
	return nil
}

// buildHTMLContent 预警的HTML内容
func buildHTMLContent(alerts []*types.AlertEvent) string {
	var b strings.Builder
	b.WriteString(`<div style="border: 2px solid #1890ff; border-radius: 10px; padding: 16px;">`)
	b.WriteString(`<h2 style="text-align: center; margin-top: 0;">🚨 行情预警</h2>`)

	up, down := splitByDirection(alerts)
	for _, alert := range append(up, down...) {
		color := "#00C851"
		if alert.ChangePercent < 0 {
			color = "#FF4444"
		}
		fmt.Fprintf(&b, `<p><strong>%s</strong> $%s <span style="font-weight: bold; color: %s;">%s</span><br/><span style="color: #666;">%s</span></p>`,
			html.EscapeString(alert.Symbol), formatPrice(alert.Price), color, signedChange(alert.ChangePercent), html.EscapeString(alert.Message))
	}

	fmt.Fprintf(&b, `<p style="color: #666;">预警时间: %s</p></div>`, alerts[0].CreatedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

func (ppn *PushPlusNotifier) send(title, content string) error {
	reqData := PushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %w", err)
	}

	resp, err := ppn.httpClient.Post(ppn.endpoint, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var pushResp PushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}
	return nil
}
