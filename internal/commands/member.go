package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/question"
)

func (r *Router) handleList(ctx context.Context, groupName string) (string, error) {
	current, err := r.activities.Current(ctx, groupName)
	if err != nil {
		return "", err
	}
	if len(current) == 0 {
		return "Nothing is scheduled right now.", nil
	}

	var b strings.Builder
	b.WriteString("Upcoming activities:\n")
	for i, activity := range current {
		state := "open"
		if !activity.EnrollmentOpen {
			state = "closed"
		}
		fmt.Fprintf(&b, "  %d. %s - %s (enrollment %s)\n",
			i+1, activity.Name, activity.StartTime.Format("2006-01-02 15:04 MST"), state)
	}
	b.WriteString("Send \"apply <name>\" to sign up.")
	return b.String(), nil
}

func (r *Router) handleApply(ctx context.Context, sess chat.Session, group GroupConfig, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}

	signup, err := r.signups.Apply(ctx, sess, activity.ID)
	if err != nil {
		return "", err
	}

	// Leaders get the batched digest; the group channel gets an immediate
	// notice, but only for records that made the roster. The applicant only
	// sees a uniform confirmation, whatever the record's fate was.
	r.dispatcher.Enqueue(activity.LeaderID,
		fmt.Sprintf("%s@%s signed up for %s", signup.Nickname, signup.World, activity.Name))
	if signup.Status == models.SignupActive && group.ChannelID != "" {
		if err := r.dispatcher.Announce(ctx, group.ChannelID,
			fmt.Sprintf("%s@%s signed up for %s.", signup.Nickname, signup.World, activity.Name)); err != nil {
			r.log.Warn("signup notice failed", zap.Error(err))
		}
	}

	return fmt.Sprintf("You are signed up for %s. See you on %s!",
		activity.Name, activity.StartTime.Format("2006-01-02 15:04 MST")), nil
}

func (r *Router) handleCancel(ctx context.Context, sess chat.Session, group GroupConfig, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}
	signup, err := r.signups.Cancel(ctx, activity.ID, sess.UserID())
	if err != nil {
		return "", err
	}

	r.dispatcher.Enqueue(activity.LeaderID,
		fmt.Sprintf("%s@%s withdrew from %s", signup.Nickname, signup.World, activity.Name))
	if group.ChannelID != "" {
		if err := r.dispatcher.Announce(ctx, group.ChannelID,
			fmt.Sprintf("%s@%s withdrew from %s.", signup.Nickname, signup.World, activity.Name)); err != nil {
			r.log.Warn("withdrawal notice failed", zap.Error(err))
		}
	}

	return fmt.Sprintf("Your signup for %s has been withdrawn.", activity.Name), nil
}

func (r *Router) handleMine(ctx context.Context, sess chat.Session, groupName string, args []string) (string, error) {
	activity, err := r.findActivity(ctx, groupName, args)
	if err != nil {
		return "", err
	}
	signup, err := r.signups.ViewOwn(ctx, activity.ID, sess.UserID())
	if err != nil {
		return "", err
	}

	answers := question.NewAnswerSet()
	if err := json.Unmarshal(signup.Content, answers); err != nil {
		return "", fmt.Errorf("commands: decode answers: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your submission for %s:\n", activity.Name)
	for _, answer := range answers.Answers() {
		value := answer.Pretty
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "  %s: %s\n", answer.Name, value)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) handleContact(ctx context.Context, sess chat.Session, groupName string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: contact <activity> <message>", nil
	}
	activity, err := r.findActivity(ctx, groupName, args[:1])
	if err != nil {
		return "", err
	}
	text := strings.Join(args[1:], " ")
	if err := r.signups.ContactLeader(ctx, activity.ID, sess.UserID(), text); err != nil {
		return "", err
	}
	return "Passed along to the raid leader.", nil
}
