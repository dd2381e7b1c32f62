package telegram

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// DefaultAPIURL is the public Bot API server.
	DefaultAPIURL = "https://api.telegram.org"

	// MaxMessageLength is the Bot API limit for a text message.
	MaxMessageLength = 4096

	timeout = 10 * time.Second
)

// Client represents a Telegram Bot API client bound to one chat
type Client struct {
	botToken   string
	chatID     int64
	channel    string
	endpoint   string
	httpClient *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewClient creates a new Telegram client. chatID is either a numeric chat
// ID or an "@channel" username. apiURL may be empty for the public server.
func NewClient(botToken, chatID, apiURL string, httpClient *http.Client) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}

	c := &Client{
		botToken:   botToken,
		httpClient: httpClient,
	}

	if strings.HasPrefix(chatID, "@") {
		if len(chatID) == 1 {
			return nil, fmt.Errorf("invalid chat ID %q", chatID)
		}
		c.channel = chatID
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat ID %q: must be numeric or @channel", chatID)
		}
		c.chatID = id
	}

	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	c.endpoint = strings.TrimRight(apiURL, "/") + "/bot%s/%s"

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: timeout}
	}

	return c, nil
}

// Chat returns the configured destination as given.
func (c *Client) Chat() string {
	if c.channel != "" {
		return c.channel
	}
	return strconv.FormatInt(c.chatID, 10)
}

// connect creates the bot on first use. Creating it calls getMe, which
// verifies the token.
func (c *Client) connect() (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bot != nil {
		return c.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(c.botToken, c.endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	c.bot = bot
	return bot, nil
}

// SendMessage sends an HTML text message to the configured chat. Link
// previews are disabled.
func (c *Client) SendMessage(text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	bot, err := c.connect()
	if err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if c.channel != "" {
		msg = tgbotapi.NewMessageToChannel(c.channel, text)
	} else {
		msg = tgbotapi.NewMessage(c.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram API error: %w", err)
	}
	return nil
}
