// Package cfdns adapts the Cloudflare API to the DNS updater port.
package cfdns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go"
)

const (
	callTimeout = 30 * time.Second

	// recordTTL is applied to records this updater creates. Rebuilds change
	// the address, so the record must not be cached for long.
	recordTTL = 120
)

// Updater upserts the A record for a rebuilt server.
type Updater struct {
	logger   *slog.Logger
	api      *cloudflare.API
	zoneName string
}

// New creates a Cloudflare DNS updater scoped to one zone.
func New(logger *slog.Logger, apiToken, zoneName string) (*Updater, error) {
	api, err := cloudflare.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, fmt.Errorf("new cloudflare api: %w", err)
	}

	return &Updater{
		logger:   logger,
		api:      api,
		zoneName: zoneName,
	}, nil
}

// Update points the A record for fqdn at ip, creating the record when it
// does not exist yet.
func (u *Updater) Update(ctx context.Context, fqdn, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	zoneID, err := u.api.ZoneIDByName(u.zoneName)
	if err != nil {
		return fmt.Errorf("resolve zone %s: %w", u.zoneName, err)
	}

	zone := cloudflare.ZoneIdentifier(zoneID)

	records, _, err := u.api.ListDNSRecords(ctx, zone, cloudflare.ListDNSRecordsParams{
		Type: "A",
		Name: fqdn,
	})
	if err != nil {
		return fmt.Errorf("list dns records for %s: %w", fqdn, err)
	}

	if len(records) == 0 {
		_, err := u.api.CreateDNSRecord(ctx, zone, cloudflare.CreateDNSRecordParams{
			Type:    "A",
			Name:    fqdn,
			Content: ip,
			TTL:     recordTTL,
			Proxied: cloudflare.BoolPtr(false),
		})
		if err != nil {
			return fmt.Errorf("create dns record %s: %w", fqdn, err)
		}

		u.logger.InfoContext(ctx, "dns record created", "fqdn", fqdn, "ip", ip)

		return nil
	}

	record := records[0]

	_, err = u.api.UpdateDNSRecord(ctx, zone, cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    "A",
		Name:    fqdn,
		Content: ip,
		TTL:     record.TTL,
	})
	if err != nil {
		return fmt.Errorf("update dns record %s: %w", fqdn, err)
	}

	u.logger.InfoContext(ctx, "dns record updated", "fqdn", fqdn, "ip", ip)

	return nil
}
