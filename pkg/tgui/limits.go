package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data limit in bytes.
const MaxCallbackDataLen = 64

// MaxButtonText keeps inline button labels readable on phones.
const MaxButtonText = 40

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
