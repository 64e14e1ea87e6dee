package user

import "github.com/trezcool/ritmatiza/core"

type Capability string

const (
	CapSubmitTasks        Capability = "submit_tasks"
	CapSuggestSongs       Capability = "suggest_songs"
	CapManageTasks        Capability = "manage_tasks"
	CapGradeSubmissions   Capability = "grade_submissions"
	CapViewAllSuggestions Capability = "view_all_suggestions"
	CapManagePlaylist     Capability = "manage_playlist"
	CapManageUsers        Capability = "manage_users"
	CapManageSpotify      Capability = "manage_spotify"
)

var (
	studentCaps = []Capability{CapSubmitTasks, CapSuggestSongs}
	teacherCaps = []Capability{CapSuggestSongs, CapManageTasks, CapGradeSubmissions, CapViewAllSuggestions}
	adminCaps   = []Capability{CapManagePlaylist, CapManageUsers, CapManageSpotify}

	// ADMIN holds every TEACHER capability.
	roleCapabilities = map[Role]map[Capability]bool{
		RoleStudent: capSet(studentCaps),
		RoleTeacher: capSet(teacherCaps),
		RoleAdmin:   capSet(teacherCaps, adminCaps),
	}
)

func capSet(lists ...[]Capability) map[Capability]bool {
	set := make(map[Capability]bool)
	for _, caps := range lists {
		for _, c := range caps {
			set[c] = true
		}
	}
	return set
}

// HasCapability is the only place role strings are interpreted for permission checks.
func HasCapability(usr User, capability Capability) bool {
	return roleCapabilities[usr.Role][capability]
}

// Require returns a core.PermissionError when usr lacks capability.
func Require(usr User, capability Capability) error {
	if !HasCapability(usr, capability) {
		return core.NewPermissionError(string(capability))
	}
	return nil
}
