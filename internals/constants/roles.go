package constants

import "fmt"

const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

const (
	ErrOnlyAdminsCanAccess     = "only admins may access %s"
	ErrOnlyRegistrantsCanAcces = "only students, tutors or admins may access %s"
)

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

func RoleErrorRegistrant(feature string) string {
	return fmt.Sprintf(ErrOnlyRegistrantsCanAcces, feature)
}

var (
	AllRoles = []string{RoleStudent, RoleTutor, RoleAdmin}

	// Registrants may open enrollments and their payment orders.
	Registrants = []string{RoleStudent, RoleTutor, RoleAdmin}

	AdminOnly = []string{RoleAdmin}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
