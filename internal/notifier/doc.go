// Package notifier delivers a formatted report digest.
//
// The notifier package decouples the report pipeline from its delivery
// channel. TelegramNotifier posts the digest to a chat, splitting it to fit
// the Bot API message limit; DryRunNotifier prints what would be sent.
package notifier
