//go:build linux

package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"wastebot/pkg/logx"
)

// notifyReady tells systemd the first snapshot is published. A no-op
// outside a Type=notify unit.
func notifyReady(log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify ready")
	}
}

func notifyStopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
	}
}
