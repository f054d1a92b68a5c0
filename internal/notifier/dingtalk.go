package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

// DingTalkNotifier 钉钉机器人通知器
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	fallback   Interface
	now        func() time.Time
}

type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalkNotifier(webhookURL, secret string) Interface {
	// 如果没有配置webhook URL，返回控制台通知器
	if webhookURL == "" {
		zap.L().Info("🔧 未配置钉钉Webhook，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置钉钉通知服务", zap.Bool("signed", secret != ""))
	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		fallback:   NewConsoleNotifier(),
		now:        time.Now,
	}
}

func (dtn *DingTalkNotifier) SendAlert(alert *types.AlertEvent) error {
	return dtn.SendBatchAlerts([]*types.AlertEvent{alert})
}

func (dtn *DingTalkNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	if len(alerts) == 0 {
		return nil
	}

	title := fmt.Sprintf("📊 行情预警 - %d个资产", len(alerts))
	if len(alerts) == 1 {
		title = fmt.Sprintf("📈 行情预警 - %s", alerts[0].Symbol)
	}

	if err := dtn.send(title, buildMarkdownContent(alerts)); err != nil {
		zap.L().Warn("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendBatchAlerts(alerts)
	}

	zap.L().Info("✅ 钉钉通知已发送", zap.Int("count", len(alerts)))
	return nil
}

// generateSignature 钉钉加签: HMAC-SHA256(timestamp + "\n" + secret)
func generateSignature(timestamp int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%d\n%s", timestamp, secret)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildSignedURL 构建带签名的URL
func (dtn *DingTalkNotifier) buildSignedURL() string {
	if dtn.secret == "" {
		return dtn.webhookURL
	}

	timestamp := dtn.now().UnixMilli()
	separator := "&"
	if !strings.Contains(dtn.webhookURL, "?") {
		separator = "?"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		dtn.webhookURL, separator, timestamp, url.QueryEscape(generateSignature(timestamp, dtn.secret)))
}

// buildMarkdownContent 预警的Markdown内容
func buildMarkdownContent(alerts []*types.AlertEvent) string {
	var b strings.Builder
	b.WriteString("## 🚨 行情预警\n\n")

	up, down := splitByDirection(alerts)
	if len(up) > 0 {
		b.WriteString("### 📈 上涨\n\n")
		for _, alert := range up {
			fmt.Fprintf(&b, "- **%s** $%s (<font color=#00C851>%s</font>)\n", alert.Symbol, formatPrice(alert.Price), signedChange(alert.ChangePercent))
		}
		b.WriteString("\n")
	}
	if len(down) > 0 {
		b.WriteString("### 📉 下跌\n\n")
		for _, alert := range down {
			fmt.Fprintf(&b, "- **%s** $%s (<font color=#FF4444>%s</font>)\n", alert.Symbol, formatPrice(alert.Price), signedChange(alert.ChangePercent))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "> 预警时间: %s", alerts[0].CreatedAt.Format("2006-01-02 15:04:05"))
	return b.String()
}

func (dtn *DingTalkNotifier) send(title, content string) error {
	message := &DingTalkMessage{
		MsgType:  "markdown",
		Markdown: &DingTalkMarkdown{Title: title, Text: content},
		At:       &DingTalkAt{AtAll: false},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	resp, err := dtn.httpClient.Post(dtn.buildSignedURL(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if dingResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误 [%d]: %s", dingResp.ErrCode, dingResp.ErrMsg)
	}
	return nil
}
