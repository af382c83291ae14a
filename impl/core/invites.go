package core

import (
	"context"
	"fmt"
	"log/slog"

	"docspace/entity"
	"docspace/internal/invites"
	"docspace/lib/sl"
)

func (c *Core) GenerateInvite(ctx context.Context, user *entity.User, req *entity.InviteRequest) (entity.InviteCode, error) {
	if user == nil {
		return entity.InviteCode{}, fmt.Errorf("user is required")
	}
	opts := invites.GenerateOptions{
		ExpiresAt:   req.ExpiryFrom(c.clock.Now()),
		MaxUses:     req.MaxUses,
		Description: req.Description,
	}
	code, err := c.registry.Generate(user.Username, user.DisplayName(), opts)
	if err != nil {
		c.log.Error("generate invite code", sl.Err(err))
		return entity.InviteCode{}, err
	}
	c.metrics.CodeGenerated()
	c.saveInvites(ctx)

	c.log.With(
		slog.String("id", code.Id),
		sl.Code(code.Code),
		slog.String("user", user.Username),
	).Info("invite code generated")
	return code, nil
}

func (c *Core) Invites() []entity.InviteCode {
	return c.registry.List()
}

func (c *Core) ActiveInvites() []entity.InviteCode {
	return c.registry.ListActive()
}

func (c *Core) InviteStats() entity.InviteStats {
	return c.registry.Stats()
}

func (c *Core) DeactivateInvite(ctx context.Context, id string) error {
	if !c.registry.Deactivate(id) {
		return invites.ErrNotFound
	}
	c.saveInvites(ctx)
	c.log.Info("invite code deactivated", slog.String("id", id))
	return nil
}

func (c *Core) DeleteInvite(ctx context.Context, id string) error {
	if !c.registry.Delete(id) {
		return invites.ErrNotFound
	}
	c.saveInvites(ctx)
	c.log.Info("invite code deleted", slog.String("id", id))
	return nil
}

func (c *Core) ValidateInvite(code string) entity.InviteValidation {
	return c.registry.Validate(code)
}

// RedeemInvite consumes one use of the code for a registering user.
func (c *Core) RedeemInvite(ctx context.Context, req *entity.RedeemRequest) entity.InviteValidation {
	code, reason := c.registry.Redeem(req.Code, req.UserId, req.UserName)
	logger := c.log.With(sl.Code(req.Code), slog.String("user_id", req.UserId))
	if reason != "" {
		c.metrics.Redemption(string(reason))
		logger.Warn("invite code rejected", slog.String("reason", string(reason)))
		return entity.InviteValidation{Error: reason}
	}
	c.metrics.Redemption("ok")
	c.saveInvites(ctx)
	logger.Info("invite code redeemed", slog.Int("uses", code.CurrentUses))
	return entity.InviteValidation{Valid: true, InviteCode: &code}
}
