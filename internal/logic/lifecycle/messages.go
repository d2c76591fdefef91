package lifecycle

import (
	"fmt"
	"time"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

// Notification texts are Telegram markdown; the transport is responsible
// for parse mode.

func renderWarning(server fleet.Server, usagePercent float64, threshold int) string {
	return fmt.Sprintf(
		"⚠️ *Traffic warning: %s*\n"+
			"📊 Usage: %.1f%% (crossed %d%%)\n"+
			"🔄 Status: %s\n"+
			"⏰ Time: %s",
		server.Name,
		usagePercent,
		threshold,
		server.Status,
		time.Now().Format("15:04:05"),
	)
}

func renderOverLimit(serverName string, usagePercent float64) string {
	return fmt.Sprintf(
		"🚨 *Traffic limit exceeded: %s*\n"+
			"📊 Usage: %.1f%%\n"+
			"🗑️ Deleting the server to protect the account...",
		serverName,
		usagePercent,
	)
}

func renderSleepShutdown(serverName string) string {
	return fmt.Sprintf("🌙 *Sleep shutdown*\nServer %s deleted", serverName)
}

func renderSleepStartup(serverName, ip string) string {
	return fmt.Sprintf("☀️ *Sleep startup*\nServer %s recreated\nIP: %s", serverName, ip)
}
