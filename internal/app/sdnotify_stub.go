//go:build !linux

package app

import "wastebot/pkg/logx"

func notifyReady(logx.Logger)    {}
func notifyStopping(logx.Logger) {}
