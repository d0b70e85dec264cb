// Package service is the package manager facade used by every transport.
//
// Install and Uninstall return an acceptance code at once and run the
// transaction on a goroutine. The observer receives zero or more progress
// calls followed by exactly one result call. Queries read the registry
// directly and never wait for a transaction to finish.
//
// Example Usage:
//
//	pm := service.New(inst, manager, layout, report.FirstBoot, logger)
//	code := pm.Install(service.InstallParam{Path: "/sdcard/demo.rpk"}, service.InstallObserverFuncs{
//		Result: func(pkg string, code int32, msg string) { ... },
//	})
//	defer pm.Close()
package service
