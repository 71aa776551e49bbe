// Package control is the thread-safe entry point to a task manager for the HTTP
// and Telegram adapters. A Manager may only be touched from its tick goroutine;
// Controller runs each operation there through host.Loop.Call and translates
// the outcome into shared error kinds.
package control
