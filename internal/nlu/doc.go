// Package nlu turns free-form Russian chat text into an intent and, for
// reminder requests, a concrete target time plus the remaining payload.
//
// Both passes are ordered rule tables evaluated first-match-wins. Nothing here
// keeps state; the only input besides the text is the caller's wall clock.
package nlu
