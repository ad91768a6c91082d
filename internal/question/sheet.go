package question

import "strconv"

// Labels of the raid signup sheet. Services read answers back by label.
const (
	LabelFirstClear    = "first_clear"
	LabelWorld         = "world"
	LabelCharacter     = "character"
	LabelContact       = "contact"
	LabelReassign      = "reassign_ok"
	LabelPrimaryRole   = "primary_role"
	LabelPrimaryJob    = "primary_job"
	LabelSecondaryRole = "secondary_role"
	LabelSecondaryJob  = "secondary_job"
	LabelMedal         = "medal"
	LabelComment       = "comment"
)

// RoleOmni is the flexible category: choosing it skips the job questions.
const RoleOmni = "Omni"

// Role groups the jobs a player can bring to a roster slot.
type Role struct {
	Name string
	Jobs []string
}

// Roles is the ordered role catalogue offered in the questionnaire.
var Roles = []Role{
	{Name: "Tank", Jobs: []string{"Paladin", "Warrior", "Dark Knight", "Gunbreaker"}},
	{Name: "Healer", Jobs: []string{"White Mage", "Scholar", "Astrologian", "Sage"}},
	{Name: "Melee", Jobs: []string{"Monk", "Dragoon", "Ninja", "Samurai", "Reaper"}},
	{Name: "Ranged", Jobs: []string{"Bard", "Machinist", "Dancer"}},
	{Name: "Caster", Jobs: []string{"Black Mage", "Summoner", "Red Mage"}},
	{Name: RoleOmni},
}

func roleNames() []string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = r.Name
	}
	return names
}

func jobsForRole(name string) []string {
	for _, r := range Roles {
		if r.Name == name {
			return r.Jobs
		}
	}
	return nil
}

// rolesExcluding filters the catalogue names, preserving order.
func rolesExcluding(exclude string) []string {
	out := make([]string, 0, len(Roles))
	for _, r := range Roles {
		if r.Name != exclude {
			out = append(out, r.Name)
		}
	}
	return out
}

func noWrap() *bool {
	wrap := false
	return &wrap
}

// skipJobQuestions reports whether the dependent job/secondary questions are
// skipped: an omni main role never picks jobs; secondary picks additionally
// require reassignment consent.
func skipForOmni(prior *AnswerSet) bool {
	return prior.Pretty(LabelPrimaryRole) == RoleOmni
}

func skipSecondary(prior *AnswerSet) bool {
	return skipForOmni(prior) || prior.Raw(LabelReassign) == "0"
}

// RaidSheet builds the signup questionnaire for an activity hosted on the
// given region's world list.
func RaidSheet(worlds []string) ([]*Question, error) {
	defs := []Definition{
		{
			Label: LabelFirstClear,
			Name:  "First timer",
			Kind:  Boolean,
			// The sheet asks about clears but exports a first-timer flag, so
			// the polarity is inverted relative to the prompt text.
			Content:  "Have you already cleared this fight?",
			Inverted: true,
		},
		{
			Label:        LabelWorld,
			Name:         "World",
			Kind:         SingleChoice,
			Content:      "Which world is your character on?",
			Descriptions: worlds,
		},
		{
			Label:   LabelCharacter,
			Name:    "Character",
			Kind:    Text,
			Content: "Character name",
		},
		{
			Label:   LabelContact,
			Name:    "Contact",
			Kind:    Text,
			Content: "Contact handle",
		},
		{
			Label: LabelReassign,
			Name:  "Accepts reassignment",
			Kind:  Boolean,
			Content: "Slots are first come, first served. If your chosen role " +
				"is already full, are you willing to be reassigned to another role?",
		},
		{
			Label:        LabelPrimaryRole,
			Name:         "Primary role",
			Kind:         SingleChoice,
			Content:      "Role & job selection: primary role",
			Descriptions: roleNames(),
		},
		{
			Label:   LabelPrimaryJob,
			Name:    "Primary job",
			Kind:    SingleChoice,
			Content: "Role & job selection: primary job",
			RangeFunc: func(prior *AnswerSet) []Choice {
				return NumberedChoices(jobsForRole(prior.Pretty(LabelPrimaryRole)))
			},
			SkipFunc: skipForOmni,
		},
		{
			Label:   LabelSecondaryRole,
			Name:    "Secondary role",
			Kind:    SingleChoice,
			Content: "Role & job selection: secondary role",
			RangeFunc: func(prior *AnswerSet) []Choice {
				return NumberedChoices(rolesExcluding(prior.Pretty(LabelPrimaryRole)))
			},
			SkipFunc: skipSecondary,
		},
		{
			Label:   LabelSecondaryJob,
			Name:    "Secondary job",
			Kind:    SingleChoice,
			Content: "Role & job selection: secondary job",
			RangeFunc: func(prior *AnswerSet) []Choice {
				return NumberedChoices(jobsForRole(prior.Pretty(LabelSecondaryRole)))
			},
			SkipFunc: skipSecondary,
		},
		{
			Label:   LabelMedal,
			Name:    "Medal stacks",
			Kind:    SingleChoice,
			Content: "Current red combat medal stacks:",
			Keys:    medalKeys(),
			Wrap:    noWrap(),
		},
		{
			Label:      LabelComment,
			Name:       "Comment",
			Kind:       Text,
			Content:    "Anything else you want the raid lead to know? (any input to continue)",
			AllowEmpty: true,
		},
	}

	sheet := make([]*Question, 0, len(defs))
	for _, def := range defs {
		q, err := Build(def)
		if err != nil {
			return nil, err
		}
		sheet = append(sheet, q)
	}
	return sheet, nil
}

func medalKeys() []string {
	keys := make([]string, 11)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}
