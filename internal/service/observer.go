package service

import "sync"

// InstallObserver receives install progress and the terminal result
type InstallObserver interface {
	OnInstallProgress(pkg string, percent int)
	OnInstallResult(pkg string, code int32, msg string)
}

// UninstallObserver receives the terminal uninstall result
type UninstallObserver interface {
	OnUninstallResult(pkg string, code int32, msg string)
}

// InstallObserverFuncs adapts plain functions to InstallObserver.
// Either field may be nil.
type InstallObserverFuncs struct {
	Progress func(pkg string, percent int)
	Result   func(pkg string, code int32, msg string)
}

func (f InstallObserverFuncs) OnInstallProgress(pkg string, percent int) {
	if f.Progress != nil {
		f.Progress(pkg, percent)
	}
}

func (f InstallObserverFuncs) OnInstallResult(pkg string, code int32, msg string) {
	if f.Result != nil {
		f.Result(pkg, code, msg)
	}
}

// UninstallObserverFunc adapts a function to UninstallObserver
type UninstallObserverFunc func(pkg string, code int32, msg string)

func (f UninstallObserverFunc) OnUninstallResult(pkg string, code int32, msg string) {
	if f != nil {
		f(pkg, code, msg)
	}
}

// terminal delivers one result at most
type terminal struct {
	once    sync.Once
	deliver func(pkg string, code int32, msg string)
}

func (t *terminal) fire(pkg string, code int32, msg string) {
	t.once.Do(func() {
		if t.deliver != nil {
			t.deliver(pkg, code, msg)
		}
	})
}
