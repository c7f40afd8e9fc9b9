// Package tgui holds small Telegram UI helpers shared by the bot handlers:
// inline keyboard builders, "scope:action:payload" callback data, HTML
// escaping for ParseMode=HTML and a message builder with sane defaults.
package tgui
