// Package logx is the bot's logging layer: a value-type Logger over zerolog
// whose outputs can be swapped at runtime by a Service.
//
// Console output is human readable, the log file is JSON, and warnings can
// be forwarded to an operator chat at a bounded rate.
package logx
