package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slichti/studio-platform/internal/repository"
)

// MemberHandler exposes front-desk member lookups.  Staff use the
// credit summary to answer "can this member book?" before taking a
// walk-in: active subscriptions cover their included classes, and the
// packs are listed in the order bookings consume them.
type MemberHandler struct {
	Store *repository.BookingStore
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(store *repository.BookingStore) *MemberHandler {
	if store == nil {
		panic("nil store passed to NewMemberHandler")
	}
	return &MemberHandler{Store: store}
}

type subscriptionEntry struct {
	ID     uint64 `json:"id"`
	PlanID uint64 `json:"plan_id"`
	Status string `json:"status"`
}

type packEntry struct {
	ID               uint64  `json:"id"`
	InitialCredits   uint32  `json:"initial_credits"`
	RemainingCredits uint32  `json:"remaining_credits"`
	ExpiresAt        *string `json:"expires_at"`
}

// Credits handles GET /v1/members/:id/credits.  Staff only.
func (h *MemberHandler) Credits(c echo.Context) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	memberID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || memberID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	ctx := c.Request().Context()

	member, err := h.Store.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if member.TenantID != tenantID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	subs, err := h.Store.ListActiveSubscriptions(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	packs, err := h.Store.ListActivePacks(ctx, memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	subEntries := make([]subscriptionEntry, 0, len(subs))
	for _, s := range subs {
		subEntries = append(subEntries, subscriptionEntry{ID: s.ID, PlanID: s.PlanID, Status: s.Status})
	}
	var remaining uint32
	packEntries := make([]packEntry, 0, len(packs))
	for _, p := range packs {
		e := packEntry{
			ID:               p.ID,
			InitialCredits:   p.InitialCredits,
			RemainingCredits: p.RemainingCredits,
		}
		if p.ExpiresAt != nil {
			v := p.ExpiresAt.UTC().Format(time.RFC3339)
			e.ExpiresAt = &v
		}
		remaining += p.RemainingCredits
		packEntries = append(packEntries, e)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"member_id":         member.ID,
		"subscriptions":     subEntries,
		"credit_packs":      packEntries,
		"remaining_credits": remaining,
	})
}
