// Package commands binds inbound chat messages to the signup services. Every
// command is plain text; the first word selects the handler and the rest is
// the argument list.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/conversation"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/internal/notify"
	"github.com/seiyelan/raidhelper/internal/services"
	"github.com/seiyelan/raidhelper/pkg/logger"
)

// GroupConfig describes one raid community the bot serves.
type GroupConfig struct {
	// ChannelID is the group's chat channel; commands arriving there belong
	// to this group.
	ChannelID string
	// Leaders may run the management commands.
	Leaders []string
	// Worlds is the world list offered by the questionnaire.
	Worlds []string
}

// Router owns the command table and the group lookup. It implements
// chat.Handler, so the hub hands it every message that is not a reply to an
// open prompt.
type Router struct {
	activities *services.ActivityService
	signups    *services.SignupService
	blacklist  *services.BlacklistService
	exempt     *services.ExemptService
	dispatcher *notify.Dispatcher
	driver     *conversation.Driver
	groups     map[string]GroupConfig
	log        *zap.Logger
}

// NewRouter constructs a Router over the service layer.
func NewRouter(
	activities *services.ActivityService,
	signups *services.SignupService,
	blacklist *services.BlacklistService,
	exempt *services.ExemptService,
	dispatcher *notify.Dispatcher,
	driver *conversation.Driver,
	groups map[string]GroupConfig,
) (*Router, error) {
	if activities == nil || signups == nil || blacklist == nil || exempt == nil {
		return nil, errors.New("commands: all services are required")
	}
	if dispatcher == nil {
		return nil, errors.New("commands: dispatcher is required")
	}
	if driver == nil {
		return nil, errors.New("commands: conversation driver is required")
	}
	if len(groups) == 0 {
		return nil, errors.New("commands: at least one group must be configured")
	}
	return &Router{
		activities: activities,
		signups:    signups,
		blacklist:  blacklist,
		exempt:     exempt,
		dispatcher: dispatcher,
		driver:     driver,
		groups:     groups,
		log:        logger.WithModule("commands"),
	}, nil
}

// Handle routes one inbound message. Replies always go back over the session;
// a nil return just means the exchange is over.
func (r *Router) Handle(ctx context.Context, sess chat.Session, msg chat.Message) error {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	group, groupName, err := r.resolveGroup(sess, msg)
	if err != nil {
		return sess.Send(ctx, err.Error())
	}

	var reply string
	switch verb {
	case "help":
		reply = r.helpText(r.isLeader(group, sess.UserID()))
	case "list":
		reply, err = r.handleList(ctx, groupName)
	case "apply":
		reply, err = r.handleApply(ctx, sess, group, groupName, args)
	case "cancel":
		reply, err = r.handleCancel(ctx, sess, group, groupName, args)
	case "mine":
		reply, err = r.handleMine(ctx, sess, groupName, args)
	case "contact":
		reply, err = r.handleContact(ctx, sess, groupName, args)
	case "open", "close", "reopen", "capacity", "reschedule", "delete",
		"detail", "export", "push", "mention", "blacklist", "exempt":
		if !r.isLeader(group, sess.UserID()) {
			return sess.Send(ctx, "Only raid leaders can run this command.")
		}
		reply, err = r.handleLeader(ctx, sess, group, groupName, verb, args)
	default:
		reply = fmt.Sprintf("Unknown command %q. Send \"help\" for the command list.", verb)
	}

	if err != nil {
		reply = r.describeError(err)
	}
	if reply == "" {
		return nil
	}
	return sess.Send(ctx, reply)
}

// resolveGroup maps the message's channel onto a configured group. Direct
// messages fall back to the sole configured group; with several groups the
// user has to talk in the group channel so the bot knows which one is meant.
func (r *Router) resolveGroup(sess chat.Session, msg chat.Message) (GroupConfig, string, error) {
	channel := msg.ChannelID
	if channel == "" {
		channel = sess.ChannelID()
	}
	for name, group := range r.groups {
		if group.ChannelID != "" && group.ChannelID == channel {
			return group, name, nil
		}
	}
	if len(r.groups) == 1 {
		for name, group := range r.groups {
			return group, name, nil
		}
	}
	return GroupConfig{}, "", errors.New("I serve several groups; please use your group's channel so I know which one you mean.")
}

func (r *Router) isLeader(group GroupConfig, userID string) bool {
	for _, leader := range group.Leaders {
		if leader == userID {
			return true
		}
	}
	return false
}

// findActivity resolves a command's activity argument. Without an argument
// the group's single upcoming activity is used; with several, the name must
// be given.
func (r *Router) findActivity(ctx context.Context, groupName string, args []string) (*models.Activity, error) {
	if len(args) > 0 {
		return r.activities.GetByName(ctx, groupName, strings.Join(args, " "))
	}
	current, err := r.activities.Current(ctx, groupName)
	if err != nil {
		return nil, err
	}
	switch len(current) {
	case 0:
		return nil, services.ErrActivityNotFound
	case 1:
		return &current[0], nil
	default:
		return nil, errors.New("several activities are open; please name one")
	}
}

// describeError turns service errors into user-facing replies. Anything
// unexpected is logged and answered generically.
func (r *Router) describeError(err error) string {
	switch {
	case errors.Is(err, services.ErrActivityNotFound):
		return "No such activity. Send \"list\" to see what is open."
	case errors.Is(err, services.ErrActivityExists):
		return "An activity with that name already exists in this group."
	case errors.Is(err, services.ErrSignupClosed):
		return "Enrollment for this activity is closed."
	case errors.Is(err, services.ErrWithinCutoff):
		return "Roster changes close 24 hours before start; ask the raid leader to handle it."
	case errors.Is(err, services.ErrActivityFull):
		return "This activity is already full."
	case errors.Is(err, services.ErrAbuseLimit):
		return "You have canceled this activity too many times and can no longer sign up."
	case errors.Is(err, services.ErrNotSignedUp):
		return "You have no active signup for this activity."
	case errors.Is(err, services.ErrMemberNotFound):
		return "No such member."
	case errors.Is(err, services.ErrCapacityTooSmall):
		return "Capacity cannot drop below the number of members already enrolled."
	case errors.Is(err, conversation.ErrTimeout):
		return "No reply for a while, so I stopped. Your previous state is unchanged; start over when ready."
	case errors.Is(err, conversation.ErrMaxRetry):
		return "Too many invalid answers, so I stopped. Start over when ready."
	case errors.Is(err, conversation.ErrExited):
		return "Okay, stopped. Nothing was changed."
	default:
		r.log.Error("command failed", zap.Error(err))
		return "Something went wrong on my side; please try again later."
	}
}

func (r *Router) helpText(leader bool) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("  list - upcoming activities\n")
	b.WriteString("  apply [activity] - sign up\n")
	b.WriteString("  cancel [activity] - withdraw your signup\n")
	b.WriteString("  mine [activity] - show your submission\n")
	b.WriteString("  contact <activity> <message> - message the raid leader")
	if leader {
		b.WriteString("\nLeader commands:\n")
		b.WriteString("  open <name> <yyyy-mm-dd hh:mm> [capacity] - schedule an activity\n")
		b.WriteString("  close|reopen <activity> - toggle enrollment\n")
		b.WriteString("  capacity <activity> <n> / reschedule <activity> <yyyy-mm-dd hh:mm>\n")
		b.WriteString("  detail <activity> / export <activity> / delete <activity>\n")
		b.WriteString("  push <activity> <message> - notify the whole roster\n")
		b.WriteString("  mention <activity> <member...> - call members out in the channel\n")
		b.WriteString("  blacklist add|remove|list ... / exempt add|remove|refresh|list ...")
	}
	return b.String()
}

// parseStartTime accepts the compact "yyyy-mm-dd hh:mm" form (two fields) or
// RFC 3339. Compact times are read as UTC.
func parseStartTime(args []string) (time.Time, []string, error) {
	if len(args) >= 2 {
		if t, err := time.Parse("2006-01-02 15:04", args[0]+" "+args[1]); err == nil {
			return t, args[2:], nil
		}
	}
	if len(args) >= 1 {
		if t, err := time.Parse(time.RFC3339, args[0]); err == nil {
			return t, args[1:], nil
		}
	}
	return time.Time{}, nil, errors.New("I could not read that time; use yyyy-mm-dd hh:mm (UTC) or RFC 3339.")
}
