// Package telegram formats Umami reports as Telegram HTML messages and
// delivers them through the Telegram Bot API.
//
// Delivery uses go-telegram-bot-api. The bot connects lazily on the first
// send, so constructing a Client never touches the network. The chat may be
// a numeric chat ID or a public channel username such as "@mychannel".
//
// Authentication requires a bot token (from @BotFather) and chat ID.
package telegram
