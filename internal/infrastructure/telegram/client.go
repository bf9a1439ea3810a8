package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// Client Telegram通知客户端，只做单向的运行结果推送
type Client struct {
	config *config.TelegramConfig
	bot    *tgbotapi.BotAPI
}

// NewClient 创建Telegram客户端
// bot创建失败不阻塞启动，通知降级为日志
func NewClient(cfg *config.TelegramConfig) *Client {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to create Telegram bot", "error", err)
		return &Client{config: cfg, bot: nil}
	}

	logger.Info("Telegram bot connected successfully", "username", bot.Self.UserName)

	return &Client{config: cfg, bot: bot}
}

// Broadcast 向配置的全部chat发送消息
func (c *Client) Broadcast(text string) error {
	if c.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	cleanText := cleanUTF8(text)

	var lastErr error
	for _, chatID := range c.config.ChatIDs {
		msg := tgbotapi.NewMessage(chatID, cleanText)
		if _, err := c.bot.Send(msg); err != nil {
			logger.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// cleanUTF8 确保文本是有效的UTF-8编码
func cleanUTF8(text string) string {
	if !utf8.ValidString(text) {
		return strings.ToValidUTF8(text, "?")
	}
	return text
}
