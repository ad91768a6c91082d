package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/notify"
	"github.com/seiyelan/raidhelper/internal/question"
	"github.com/seiyelan/raidhelper/internal/services"
)

func (r *Router) handleLeader(ctx context.Context, sess chat.Session, group GroupConfig, groupName, verb string, args []string) (string, error) {
	switch verb {
	case "open":
		return r.handleOpen(ctx, sess, groupName, args)
	case "close":
		return r.handleEnrollment(ctx, groupName, args, false)
	case "reopen":
		return r.handleEnrollment(ctx, groupName, args, true)
	case "capacity":
		return r.handleCapacity(ctx, groupName, args)
	case "reschedule":
		return r.handleReschedule(ctx, groupName, args)
	case "delete":
		return r.handleDelete(ctx, sess, groupName, args)
	case "detail":
		return r.handleDetail(ctx, groupName, args)
	case "export":
		return r.handleExport(ctx, groupName, args)
	case "push":
		return r.handlePush(ctx, groupName, args)
	case "mention":
		return r.handleMention(ctx, group, groupName, args)
	case "blacklist":
		return r.handleBlacklist(ctx, groupName, args)
	case "exempt":
		return r.handleExempt(ctx, groupName, args)
	default:
		return "", fmt.Errorf("commands: unhandled leader verb %q", verb)
	}
}

func (r *Router) handleOpen(ctx context.Context, sess chat.Session, groupName string, args []string) (string, error) {
	if len(args) < 3 {
		return "Usage: open <name> <yyyy-mm-dd hh:mm> [capacity]", nil
	}
	name := args[0]
	start, rest, err := parseStartTime(args[1:])
	if err != nil {
		return err.Error(), nil
	}

	capacity := 0
	category := models.CategoryRaid
	if len(rest) > 0 {
		capacity, err = strconv.Atoi(rest[0])
		if err != nil || capacity < 1 {
			return "Capacity must be a positive number.", nil
		}
	}
	if len(rest) > 1 && models.ActivityCategory(rest[1]) == models.CategoryParty {
		category = models.CategoryParty
	}

	activity, err := r.activities.Open(ctx, services.OpenActivityInput{
		GroupName: groupName,
		Name:      name,
		Category:  category,
		Capacity:  capacity,
		LeaderID:  sess.UserID(),
		StartTime: start,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is open for signups: %s, %d slots.",
		activity.Name, activity.StartTime.Format("2006-01-02 15:04 MST"), activity.Capacity), nil
}

func (r *Router) handleEnrollment(ctx context.Context, groupName string, args []string, open bool) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}
	activity, err = r.activities.SetEnrollment(ctx, activity.ID, open)
	if err != nil {
		return "", err
	}
	if open {
		return fmt.Sprintf("Enrollment for %s is open again.", activity.Name), nil
	}
	return fmt.Sprintf("Enrollment for %s is now closed.", activity.Name), nil
}

func (r *Router) handleCapacity(ctx context.Context, groupName string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: capacity <activity> <n>", nil
	}
	n, err := strconv.Atoi(args[len(args)-1])
	if err != nil || n < 1 {
		return "Capacity must be a positive number.", nil
	}
	activity, err := r.findActivity(ctx, groupName, args[:len(args)-1])
	if err != nil {
		return "", err
	}
	activity, err = r.activities.ModifyCapacity(ctx, activity.ID, n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now has %d slots.", activity.Name, activity.Capacity), nil
}

func (r *Router) handleReschedule(ctx context.Context, groupName string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: reschedule <activity> <yyyy-mm-dd hh:mm>", nil
	}
	start, _, err := parseStartTime(args[len(args)-2:])
	if err != nil {
		return err.Error(), nil
	}
	activity, err := r.findActivity(ctx, groupName, args[:len(args)-2])
	if err != nil {
		return "", err
	}
	activity, err = r.activities.ModifyStartTime(ctx, activity.ID, start)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s moved to %s. Signed-up members will be reminded for the new slot.",
		activity.Name, activity.StartTime.Format("2006-01-02 15:04 MST")), nil
}

func (r *Router) handleDelete(ctx context.Context, sess chat.Session, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}

	confirm, err := question.Build(question.Definition{
		Label:   "confirm_delete",
		Name:    "Confirm deletion",
		Kind:    question.Boolean,
		Content: fmt.Sprintf("Delete %s and every signup it holds?", activity.Name),
	})
	if err != nil {
		return "", fmt.Errorf("commands: build confirmation: %w", err)
	}
	answer, err := r.driver.AskOne(ctx, sess, confirm)
	if err != nil {
		return "", err
	}
	if answer.Raw != "1" {
		return "Kept as is.", nil
	}

	if err := r.activities.Delete(ctx, activity.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s and its signups have been deleted.", activity.Name), nil
}

func (r *Router) handleDetail(ctx context.Context, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}
	detail, err := r.activities.Detail(ctx, activity.ID)
	if err != nil {
		return "", err
	}
	roster, err := r.signups.ListActive(ctx, activity.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s, %d/%d enrolled\n",
		detail.Activity.Name,
		detail.Activity.StartTime.Format("2006-01-02 15:04 MST"),
		detail.Enrolled, detail.Activity.Capacity)
	for i, signup := range roster {
		fmt.Fprintf(&b, "  %d. %s@%s\n", i+1, signup.Nickname, signup.World)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) handleExport(ctx context.Context, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}
	out, err := r.signups.ExportCSV(ctx, activity.ID)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *Router) handlePush(ctx context.Context, groupName string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: push <activity> <message>", nil
	}
	activity, err := r.findActivity(ctx, groupName, args[:1])
	if err != nil {
		return "", err
	}
	roster, err := r.signups.ListActive(ctx, activity.ID)
	if err != nil {
		return "", err
	}
	if len(roster) == 0 {
		return "Nobody is signed up yet.", nil
	}

	recipients := make([]string, 0, len(roster))
	for _, signup := range roster {
		recipients = append(recipients, signup.UserID)
	}
	text := strings.Join(args[1:], " ")

	// The bucket is the digest of the message, so re-running the same push
	// never spams the roster while a reworded one goes out normally.
	sum := sha256.Sum256([]byte(text))
	bucket := hex.EncodeToString(sum[:6])

	if err := r.dispatcher.Fanout(ctx, activity.ID, notify.KindPush, bucket, recipients,
		fmt.Sprintf("[%s] %s", activity.Name, text)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Pushed to %d members.", len(recipients)), nil
}

func (r *Router) handleMention(ctx context.Context, group GroupConfig, groupName string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: mention <activity> <member...>", nil
	}
	activity, err := r.findActivity(ctx, groupName, args[:1])
	if err != nil {
		return "", err
	}
	roster, err := r.signups.ListActive(ctx, activity.ID)
	if err != nil {
		return "", err
	}

	resolver := services.NewMemberResolver(roster)
	resolutions := resolver.Resolve(args[1:])

	// The payload keeps one marker per fragment in input order, so the leader
	// can line the result up against what they typed.
	parts := make([]string, len(resolutions))
	resolved := 0
	for i, res := range resolutions {
		if res.Resolved() {
			parts[i] = fmt.Sprintf("@%s", res.Signup.Nickname)
			resolved++
		} else {
			parts[i] = fmt.Sprintf("%s (no match)", res.Token)
		}
	}
	payload := fmt.Sprintf("%s: please check in for %s.", strings.Join(parts, " "), activity.Name)

	if resolved > 0 && group.ChannelID != "" {
		// Deliberate channel post so everyone sees who is being called out.
		if err := r.dispatcher.Announce(ctx, group.ChannelID, payload); err != nil {
			return "", err
		}
		return fmt.Sprintf("Mentioned %d of %d members in the channel.", resolved, len(resolutions)), nil
	}
	return payload, nil
}
