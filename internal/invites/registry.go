// Package invites manages the invitation codes that gate registration.
//
// The Registry is the only writer of invite code records. Use runs the
// validate-then-increment sequence under a single lock, so concurrent
// redemptions of a code can never exceed its MaxUses.
package invites

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"docspace/entity"
	"docspace/lib/clock"

	"github.com/google/uuid"
)

const (
	DefaultCodeLength = 8
	defaultAttempts   = 10
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrNotFound = errors.New("invite code not found")

type Config struct {
	CodeLength int
	// Attempts is how many random codes of one length are tried before the
	// length is widened by one character.
	Attempts int
}

type GenerateOptions struct {
	ExpiresAt   *time.Time
	MaxUses     *int
	Description string
}

type Registry struct {
	mu         sync.Mutex
	clock      clock.Clock
	random     io.Reader
	codeLength int
	attempts   int
	codes      []*entity.InviteCode
}

func New(clk clock.Clock, conf Config) *Registry {
	if clk == nil {
		clk = clock.System{}
	}
	if conf.CodeLength <= 0 {
		conf.CodeLength = DefaultCodeLength
	}
	if conf.Attempts <= 0 {
		conf.Attempts = defaultAttempts
	}
	return &Registry{
		clock:      clk,
		random:     rand.Reader,
		codeLength: conf.CodeLength,
		attempts:   conf.Attempts,
	}
}

// Generate creates a new active code and appends it to the registry.
// The only possible error comes from the random source.
func (r *Registry) Generate(createdBy, createdByName string, opts GenerateOptions) (entity.InviteCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.uniqueCode()
	if err != nil {
		return entity.InviteCode{}, fmt.Errorf("generating code: %w", err)
	}

	inviteCode := &entity.InviteCode{
		Id:            uuid.NewString(),
		Code:          code,
		CreatedBy:     createdBy,
		CreatedByName: createdByName,
		CreatedAt:     clock.Stamp(r.clock),
		CurrentUses:   0,
		IsActive:      true,
		UsedBy:        []entity.InviteUsage{},
		Description:   opts.Description,
	}
	if opts.ExpiresAt != nil {
		t := opts.ExpiresAt.UTC().Truncate(time.Millisecond)
		inviteCode.ExpiresAt = &t
	}
	if opts.MaxUses != nil {
		n := *opts.MaxUses
		inviteCode.MaxUses = &n
	}

	r.codes = append(r.codes, inviteCode)
	return inviteCode.Clone(), nil
}

// Validate looks the code up by exact match and reports whether it is usable now.
func (r *Registry) Validate(code string) entity.InviteValidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validate(code)
}

func (r *Registry) validate(code string) entity.InviteValidation {
	inviteCode := r.findByCode(code)
	if inviteCode == nil {
		return entity.InviteValidation{Error: entity.InviteNotFound}
	}
	if reason := inviteCode.Check(r.clock.Now()); reason != "" {
		return entity.InviteValidation{Error: reason}
	}
	cp := inviteCode.Clone()
	return entity.InviteValidation{Valid: true, InviteCode: &cp}
}

// Use consumes one use of the code on behalf of a user. It returns false and
// changes nothing if the code is not usable at the moment of the call.
func (r *Registry) Use(code, userId, userName string) bool {
	_, reason := r.Redeem(code, userId, userName)
	return reason == ""
}

// Redeem is Use that also reports why a code could not be used, and the
// updated record on success.
func (r *Registry) Redeem(code, userId, userName string) (entity.InviteCode, entity.InviteError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inviteCode := r.findByCode(code)
	if inviteCode == nil {
		return entity.InviteCode{}, entity.InviteNotFound
	}
	if reason := inviteCode.Check(r.clock.Now()); reason != "" {
		return entity.InviteCode{}, reason
	}

	inviteCode.CurrentUses++
	inviteCode.UsedBy = append(inviteCode.UsedBy, entity.InviteUsage{
		UserId:   userId,
		UserName: userName,
		UsedAt:   clock.Stamp(r.clock),
	})
	return inviteCode.Clone(), ""
}

// Deactivate marks the code inactive. Deactivating an inactive code is a no-op.
// Returns false if no code has this id.
func (r *Registry) Deactivate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	inviteCode := r.findById(id)
	if inviteCode == nil {
		return false
	}
	inviteCode.IsActive = false
	return true
}

// Delete removes the code permanently. Returns false if no code has this id.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.codes {
		if c.Id == id {
			r.codes = append(r.codes[:i], r.codes[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Get(id string) (entity.InviteCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inviteCode := r.findById(id)
	if inviteCode == nil {
		return entity.InviteCode{}, false
	}
	return inviteCode.Clone(), true
}

// List returns every code in creation order.
func (r *Registry) List() []entity.InviteCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]entity.InviteCode, 0, len(r.codes))
	for _, c := range r.codes {
		list = append(list, c.Clone())
	}
	return list
}

// ListActive returns the codes that are usable right now.
func (r *Registry) ListActive() []entity.InviteCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	list := make([]entity.InviteCode, 0)
	for _, c := range r.codes {
		if c.Check(now) == "" {
			list = append(list, c.Clone())
		}
	}
	return list
}

func (r *Registry) Stats() entity.InviteStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	stats := entity.InviteStats{Total: len(r.codes)}
	for _, c := range r.codes {
		if c.IsActive {
			stats.Active++
		}
		if c.IsExpired(now) {
			stats.Expired++
		}
		if c.IsExhausted() {
			stats.Used++
		}
		stats.TotalUses += c.CurrentUses
	}
	return stats
}

func (r *Registry) Snapshot() entity.InviteSnapshot {
	return entity.InviteSnapshot{InviteCodes: r.List()}
}

// Restore replaces the registry contents with a previously saved snapshot.
func (r *Registry) Restore(snapshot entity.InviteSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes = make([]*entity.InviteCode, 0, len(snapshot.InviteCodes))
	for i := range snapshot.InviteCodes {
		c := snapshot.InviteCodes[i].Clone()
		r.codes = append(r.codes, &c)
	}
}

func (r *Registry) findByCode(code string) *entity.InviteCode {
	for _, c := range r.codes {
		if c.Code == code {
			return c
		}
	}
	return nil
}

func (r *Registry) findById(id string) *entity.InviteCode {
	for _, c := range r.codes {
		if c.Id == id {
			return c
		}
	}
	return nil
}

// uniqueCode draws codes until one does not collide with an existing code,
// widening the code after every `attempts` collisions.
func (r *Registry) uniqueCode() (string, error) {
	length := r.codeLength
	for {
		for i := 0; i < r.attempts; i++ {
			code, err := randomCode(r.random, length)
			if err != nil {
				return "", err
			}
			if r.findByCode(code) == nil {
				return code, nil
			}
		}
		length++
	}
}

func randomCode(random io.Reader, length int) (string, error) {
	base := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(random, base)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
