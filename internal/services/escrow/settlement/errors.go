package settlement

import (
	"context"
	"errors"
	"strconv"

	apperrors "github.com/louisbranch/escrow/internal/platform/errors"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/campaign"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
)

// ErrCallerMissing indicates a call without a resolved identity.
var ErrCallerMissing = apperrors.New(apperrors.CodeCallerMissing, "caller identity is required")

// LoadCampaign reads a campaign inside tx, mapping a missing row to a
// NOT_FOUND domain error.
func LoadCampaign(ctx context.Context, tx storage.CampaignStore, id uint64) (campaign.Campaign, error) {
	c, err := tx.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return campaign.Campaign{}, apperrors.NotFound("campaign", strconv.FormatUint(id, 10))
		}
		return campaign.Campaign{}, err
	}
	return c, nil
}
