// Package commands implements the bot's control commands on top of a
// control.Controller. Execute is transport-free; Handle adapts it to a
// telegram.HandlerFunc.
package commands
