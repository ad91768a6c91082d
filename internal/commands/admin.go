package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/seiyelan/raidhelper/internal/services"
)

// handleBlacklist covers "blacklist add|remove|list". Targets are either a
// platform user id ("id:<value>") or a "<nickname>@<world>" pair.
func (r *Router) handleBlacklist(ctx context.Context, groupName string, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: blacklist add <target> [reason] | blacklist remove <target> | blacklist list", nil
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return "Usage: blacklist add <id:user|nickname@world> [reason]", nil
		}
		userID, nickname, world, ok := parseTarget(args[1])
		if !ok {
			return "Target must be id:<user id> or <nickname>@<world>.", nil
		}
		entry, err := r.blacklist.Add(ctx, services.BlacklistInput{
			GroupName: groupName,
			UserID:    userID,
			Nickname:  nickname,
			World:     world,
			Reason:    strings.Join(args[2:], " "),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Blacklisted %s.", describeTarget(entry.UserID, entry.Nickname, entry.World)), nil

	case "remove":
		if len(args) < 2 {
			return "Usage: blacklist remove <id:user|nickname@world>", nil
		}
		userID, nickname, world, ok := parseTarget(args[1])
		if !ok {
			return "Target must be id:<user id> or <nickname>@<world>.", nil
		}
		removed, err := r.blacklist.Remove(ctx, groupName, userID, nickname, world)
		if err != nil {
			return "", err
		}
		if removed == 0 {
			return "No matching blacklist entry.", nil
		}
		return fmt.Sprintf("Removed %d blacklist entries.", removed), nil

	case "list":
		entries, err := r.blacklist.List(ctx, groupName)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "The blacklist is empty.", nil
		}
		var b strings.Builder
		b.WriteString("Blacklist:\n")
		for i, entry := range entries {
			fmt.Fprintf(&b, "  %d. %s", i+1, describeTarget(entry.UserID, entry.Nickname, entry.World))
			if entry.Reason != "" {
				fmt.Fprintf(&b, " - %s", entry.Reason)
			}
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n"), nil

	default:
		return "Usage: blacklist add <target> [reason] | blacklist remove <target> | blacklist list", nil
	}
}

// handleExempt covers "exempt add|remove|refresh|list".
func (r *Router) handleExempt(ctx context.Context, groupName string, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: exempt add <user id> <nickname@world> [contact:<handle>] [remark] | exempt remove <user id> | exempt refresh <user id> | exempt list", nil
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 3 {
			return "Usage: exempt add <user id> <nickname@world> [contact:<handle>] [remark]", nil
		}
		nickname, world, ok := splitCharacter(args[2])
		if !ok {
			return "Character must be given as <nickname>@<world>.", nil
		}
		var contact string
		var remark []string
		for _, arg := range args[3:] {
			if rest, found := strings.CutPrefix(arg, "contact:"); found && contact == "" {
				contact = rest
				continue
			}
			remark = append(remark, arg)
		}
		member, err := r.exempt.Add(ctx, services.ExemptInput{
			GroupName: groupName,
			UserID:    args[1],
			Nickname:  nickname,
			World:     world,
			Contact:   contact,
			Remark:    strings.Join(remark, " "),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s@%s is exempt until %s.",
			member.Nickname, member.World, member.ExpiresAt.Format("2006-01-02")), nil

	case "remove":
		if len(args) < 2 {
			return "Usage: exempt remove <user id>", nil
		}
		if err := r.exempt.Remove(ctx, groupName, args[1]); err != nil {
			return "", err
		}
		return "Exemption revoked.", nil

	case "refresh":
		if len(args) < 2 {
			return "Usage: exempt refresh <user id>", nil
		}
		member, err := r.exempt.Refresh(ctx, groupName, args[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s@%s is now exempt until %s.",
			member.Nickname, member.World, member.ExpiresAt.Format("2006-01-02")), nil

	case "list":
		members, err := r.exempt.List(ctx, groupName)
		if err != nil {
			return "", err
		}
		if len(members) == 0 {
			return "No exempt members.", nil
		}
		var b strings.Builder
		b.WriteString("Exempt members:\n")
		for i, member := range members {
			fmt.Fprintf(&b, "  %d. %s@%s (until %s)\n",
				i+1, member.Nickname, member.World, member.ExpiresAt.Format("2006-01-02"))
		}
		return strings.TrimRight(b.String(), "\n"), nil

	default:
		return "Usage: exempt add <user id> <nickname@world> [contact:<handle>] [remark] | exempt remove <user id> | exempt refresh <user id> | exempt list", nil
	}
}

func describeTarget(userID, nickname, world string) string {
	if nickname != "" && world != "" {
		return nickname + "@" + world
	}
	return "user " + userID
}

// parseTarget reads a blacklist target: "id:<user id>" or "<nickname>@<world>".
func parseTarget(raw string) (userID, nickname, world string, ok bool) {
	if rest, found := strings.CutPrefix(raw, "id:"); found {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return "", "", "", false
		}
		return rest, "", "", true
	}
	nickname, world, ok = splitCharacter(raw)
	return "", nickname, world, ok
}

// splitCharacter reads a "<nickname>@<world>" pair. Nicknames may contain
// spaces when quoted as a single argument upstream; the world never does.
func splitCharacter(raw string) (nickname, world string, ok bool) {
	idx := strings.LastIndex(raw, "@")
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}
