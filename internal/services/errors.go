package services

import "errors"

var (
	// ErrActivityNotFound indicates no activity matches the identifier.
	ErrActivityNotFound = errors.New("activity: not found")
	// ErrActivityExists indicates an activity with the same name already
	// exists within the group.
	ErrActivityExists = errors.New("activity: name already taken")
	// ErrSignupClosed indicates enrollment has been closed by the leader.
	ErrSignupClosed = errors.New("signup: enrollment closed")
	// ErrWithinCutoff indicates the activity starts in less than the signup
	// cutoff window.
	ErrWithinCutoff = errors.New("signup: within cutoff window")
	// ErrActivityFull indicates the roster has reached capacity.
	ErrActivityFull = errors.New("signup: activity full")
	// ErrAbuseLimit indicates the user canceled too many times for this
	// activity and may no longer re-apply.
	ErrAbuseLimit = errors.New("signup: cancellation limit reached")
	// ErrNotSignedUp indicates the user has no active signup to operate on.
	ErrNotSignedUp = errors.New("signup: no active record")
	// ErrMemberNotFound indicates an exempt or roster member lookup missed.
	ErrMemberNotFound = errors.New("member: not found")
	// ErrCapacityTooSmall indicates a capacity change below the number of
	// already enrolled members.
	ErrCapacityTooSmall = errors.New("activity: capacity below current roster")
)
