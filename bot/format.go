package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"docspace/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const maxTrafficDays = 365

// parseInviteArgs reads the optional positional [max_uses] [days]
func parseInviteArgs(args []string) (*entity.InviteRequest, error) {
	req := &entity.InviteRequest{}
	if len(args) > 2 {
		return nil, fmt.Errorf("too many arguments")
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("max_uses must be a positive number")
		}
		req.MaxUses = &n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > 3650 {
			return nil, fmt.Errorf("days must be between 1 and 3650")
		}
		req.ExpiresInDays = n
	}
	return req, nil
}

// parseDays reads an optional day count; zero means the service default
func parseDays(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > maxTrafficDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxTrafficDays)
	}
	return n, nil
}

// findCode matches an id exactly or a code case-insensitively
func findCode(codes []entity.InviteCode, key string) (entity.InviteCode, bool) {
	for _, c := range codes {
		if c.Id == key || strings.EqualFold(c.Code, key) {
			return c, true
		}
	}
	return entity.InviteCode{}, false
}

func codeState(c entity.InviteCode, now time.Time) string {
	switch c.Check(now) {
	case entity.InviteDeactivated:
		return "inactive"
	case entity.InviteExpired:
		return "expired"
	case entity.InviteExhausted:
		return "used up"
	}
	return "active"
}

func usesText(c entity.InviteCode) string {
	if c.MaxUses == nil {
		return fmt.Sprintf("%d/∞", c.CurrentUses)
	}
	return fmt.Sprintf("%d/%d", c.CurrentUses, *c.MaxUses)
}

func formatCode(c entity.InviteCode, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Invite code: `%s`\n", Sanitize(c.Code)))
	sb.WriteString(fmt.Sprintf("Uses: %s\n", Sanitize(usesText(c))))
	if c.ExpiresAt != nil {
		sb.WriteString(fmt.Sprintf("Expires: %s\n", Sanitize(c.ExpiresAt.Format("2006-01-02 15:04"))))
	} else {
		sb.WriteString("Expires: never\n")
	}
	sb.WriteString(fmt.Sprintf("State: %s", codeState(c, now)))
	return sb.String()
}

func formatCodes(codes []entity.InviteCode, now time.Time) string {
	if len(codes) == 0 {
		return "No invite codes\\."
	}
	sorted := make([]entity.InviteCode, len(codes))
	copy(sorted, codes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Invite codes* \\(%d\\)\n", len(sorted)))
	for _, c := range sorted {
		sb.WriteString(fmt.Sprintf("`%s` \\| %s \\| %s \\| %s\n",
			Sanitize(c.Code),
			Sanitize(usesText(c)),
			Sanitize(codeState(c, now)),
			Sanitize(c.CreatedByName),
		))
	}
	return sb.String()
}

func formatStats(s entity.InviteStats) string {
	return fmt.Sprintf("*Invite codes*\nTotal: %d\nActive: %d\nExpired: %d\nUsed up: %d\nRegistrations: %d",
		s.Total, s.Active, s.Expired, s.Used, s.TotalUses)
}

func formatTraffic(s entity.AnalyticsSummary, pages []entity.PopularPage, countries []entity.CountryCount) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Traffic, last %d days*\n", s.Days))
	sb.WriteString(fmt.Sprintf("Page views: %d\nVisitors: %d\nAvg session: %s\nSearches: %d\n",
		s.TotalPageViews, s.UniqueVisitors,
		Sanitize((time.Duration(s.AvgSessionDuration) * time.Second).String()),
		s.TotalSearches))
	if len(pages) > 0 {
		sb.WriteString("\n*Top pages*\n")
		for _, p := range pages {
			sb.WriteString(fmt.Sprintf("%s \\- %d \\(%s\\)\n", Sanitize(p.Title), p.Views, Sanitize(p.Change)))
		}
	}
	if len(countries) > 0 {
		sb.WriteString("\n*Countries*\n")
		for _, c := range countries {
			sb.WriteString(fmt.Sprintf("%s \\- %d\n", Sanitize(c.Name), c.Visitors))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func helpText(commands []tgbotapi.BotCommand) string {
	var sb strings.Builder
	sb.WriteString("*Commands*\n")
	for _, c := range commands {
		sb.WriteString(fmt.Sprintf("/%s \\- %s\n", c.Command, Sanitize(c.Description)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
