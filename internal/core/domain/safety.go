package domain

import "time"

// SafetyMode is the state of the safety flag.
type SafetyMode string

const (
	SafetyModeActive SafetyMode = "ACTIVE"
	SafetyModePaused SafetyMode = "PAUSED"
)

// SafetyState is the controller's persisted state. Admin never changes after
// the state is first created.
type SafetyState struct {
	Admin      AccountID `json:"admin"`
	DepositCap int64     `json:"deposit_cap"`
	Paused     bool      `json:"paused"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Mode maps the pause flag onto the two-state machine.
func (s *SafetyState) Mode() SafetyMode {
	if s.Paused {
		return SafetyModePaused
	}
	return SafetyModeActive
}

// IsAdmin reports whether caller holds the administrator identity.
func (s *SafetyState) IsAdmin(caller AccountID) bool {
	return caller != "" && caller == s.Admin
}
