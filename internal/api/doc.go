// Package api defines the JSON bodies exchanged with HTTP clients.
//
// Builders such as NewChatResponse take a runner.Result and the fields the
// request asked to have echoed back. They never fail: a failed turn is
// already a Result whose text starts with "Error: ".
package api
