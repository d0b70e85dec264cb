// Package main is the pm command, a thin client of the package manager
// daemon.
//
// Usage:
//
//	pm install /sdcard/demo.rpk
//	pm uninstall --clear-data com.example.demo
//	pm list --names --match 'com.example.*'
//	pm --addr http://127.0.0.1:9000 stats com.example.demo
package main
