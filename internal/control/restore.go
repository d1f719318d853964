package control

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// Restore re-applies saved zone states keyed by ZoneID. Zones that no longer exist are
// skipped. A zone whose state cannot be read back after the write counts as applied.
// It returns how many zones were applied and the joined per-zone errors.
func (c *Controller) Restore(ctx context.Context, saved map[string]mystic.ZoneState) (int, error) {
	ids := make([]string, 0, len(saved))
	for id := range saved {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	applied := 0
	var errs []error
	for _, id := range ids {
		device, zone, ok := strings.Cut(id, "/")
		if !ok {
			continue
		}
		if _, err := c.Zone(device, zone); err != nil {
			log.Debug().Str("zone", id).Msg("Saved zone no longer present, skipping restore")
			continue
		}
		if _, err := c.SetState(ctx, device, zone, saved[id]); err != nil && !errors.Is(err, ErrReadBack) {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		applied++
	}

	log.Info().Int("applied", applied).Int("failed", len(errs)).Msg("Zone states restored")
	return applied, errors.Join(errs...)
}
