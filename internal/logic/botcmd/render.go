package botcmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/skillcoder/trafficwarden/internal/logic/fleet"
)

const progressBarSegments = 20

func renderHelp(info StatusInfo) string {
	var b strings.Builder

	b.WriteString("🤖 *trafficwarden*\n\n")
	b.WriteString("*Commands:*\n")
	b.WriteString("/start, /help - show this help\n")
	b.WriteString("/ll, /list - list servers and traffic usage\n")
	b.WriteString("/traffic - traffic usage statistics\n")
	b.WriteString("/status - monitor status\n")
	b.WriteString("/rebuild <server> - rebuild a server\n")
	b.WriteString("/stop <server> - delete a server\n\n")
	b.WriteString("*Automatic:*\n")
	fmt.Fprintf(&b, "• traffic poll every %s\n", info.PollInterval)
	fmt.Fprintf(&b, "• staged warnings at %s%%\n", joinInts(info.Thresholds))
	fmt.Fprintf(&b, "• auto-delete above %d%%\n", info.LimitPercent)

	if info.SleepEnabled {
		fmt.Fprintf(&b, "• sleep mode: shutdown %s, startup %s\n", info.ShutdownTime, info.StartupTime)
	}

	return b.String()
}

func renderServerList(servers []fleet.Server, usage map[string]fleet.UsageSample, warned map[string]int) string {
	if len(servers) == 0 {
		return "❌ No servers found"
	}

	var b strings.Builder

	b.WriteString("🖥️ *Servers*\n\n")

	for _, server := range servers {
		emoji := "🔴"
		if server.Status == fleet.ServerStatusRunning {
			emoji = "🟢"
		}

		fmt.Fprintf(&b, "%s *%s*\n", emoji, server.Name)

		if sample, ok := usage[server.Name]; ok {
			fmt.Fprintf(&b, "  📊 Traffic: %.1f%% (%.0fGB/%.0fGB)\n",
				sample.Percent(), sample.UsedGB, sample.TotalGB)
		} else {
			b.WriteString("  📊 Traffic: probe failed\n")
		}

		if threshold, ok := warned[server.Name]; ok {
			fmt.Fprintf(&b, "  🔔 Warned at: %d%%\n", threshold)
		}

		fmt.Fprintf(&b, "  🏷️ Type: %s\n", server.Type)
		fmt.Fprintf(&b, "  📍 Location: %s\n", server.Location)
		fmt.Fprintf(&b, "  🔄 Status: %s\n\n", server.Status)
	}

	return b.String()
}

func renderTraffic(servers []fleet.Server, usage map[string]fleet.UsageSample) string {
	if len(servers) == 0 {
		return "❌ No servers found"
	}

	var b strings.Builder

	b.WriteString("📈 *Traffic usage*\n\n")

	for _, server := range servers {
		fmt.Fprintf(&b, "*%s*\n", server.Name)

		sample, ok := usage[server.Name]
		if !ok {
			b.WriteString("probe failed\n\n")

			continue
		}

		percent := sample.Percent()
		fmt.Fprintf(&b, "`%s` %.1f%%\n", progressBar(percent), percent)
		fmt.Fprintf(&b, "%.0fGB / %.0fGB\n\n", sample.UsedGB, sample.TotalGB)
	}

	return b.String()
}

func renderStatus(info StatusInfo, now time.Time) string {
	var b strings.Builder

	b.WriteString("📊 *Monitor status*\n\n")
	fmt.Fprintf(&b, "🕒 Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "🔔 Warning thresholds: %s%%\n", joinInts(info.Thresholds))
	fmt.Fprintf(&b, "🚨 Delete threshold: %d%%\n", info.LimitPercent)

	if info.SleepEnabled {
		b.WriteString("⏰ Sleep mode: enabled\n")
		fmt.Fprintf(&b, "  🛌 Shutdown: %s\n", info.ShutdownTime)
		fmt.Fprintf(&b, "  ☀️ Startup: %s\n", info.StartupTime)
	} else {
		b.WriteString("⏰ Sleep mode: disabled\n")
	}

	return b.String()
}

// progressBar renders a fixed-width usage bar. Usage at or above 100% fills
// every segment.
func progressBar(percent float64) string {
	filled := int(progressBarSegments * percent / 100)
	if filled > progressBarSegments {
		filled = progressBarSegments
	}

	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarSegments-filled)
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d", v))
	}

	return strings.Join(parts, ",")
}
