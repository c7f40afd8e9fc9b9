// Package bot is the conversation controller: it turns inbound Telegram
// updates into reminder operations and renders the replies.
//
// Every message is handled on its own; there is no multi-turn state. Text is
// classified by package nlu, reminders are managed through the Reminders
// interface and replies go out through a transport.Sender.
package bot
